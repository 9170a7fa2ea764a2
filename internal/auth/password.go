package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for stored credentials.
const PasswordCost = 10

var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword derives the stored credential hash for a new secret.
func HashPassword(password string) (string, error) {
	const op = "auth.HashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// CheckPasswordHash reports whether password matches hash. A malformed or
// empty hash never matches.
func CheckPasswordHash(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("videotube-dummy-password"), PasswordCost)
	})
	return dummy
}

// CheckMissingUser spends one bcrypt comparison for a login whose account
// does not exist, so it takes as long as a wrong password. It never matches.
func CheckMissingUser(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return false
}
