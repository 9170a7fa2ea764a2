package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"videotube/internal/auth"
	"videotube/internal/models"
	"videotube/internal/storage"

	"github.com/gofrs/uuid"
)

// issueSession mints a fresh token pair for user and makes its refresh token
// the only one that Refresh will accept. Concurrent calls for the same user
// race here and the last write wins; the losing caller's refresh token is
// rejected on its next use.
func (s *service) issueSession(ctx context.Context, log *slog.Logger, user models.User) (models.TokenPair, error) {
	accessToken, err := s.tokens.IssueAccess(user)
	if err != nil {
		log.Error("failed to issue access token", slog.Any("error", err))

		return models.TokenPair{}, errInternal
	}

	refreshToken, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		log.Error("failed to issue refresh token", slog.Any("error", err))

		return models.TokenPair{}, errInternal
	}

	if err := s.sessions.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.TokenPair{}, unauthorized("session is no longer valid")
		}
		log.Error("failed to store refresh token", slog.Any("error", err))

		return models.TokenPair{}, errInternal
	}

	return models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *service) Login(ctx context.Context, identifier, password string) (models.Session, error) {
	const op = "service.Login"

	log := s.log.With(slog.String("op", op))

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return models.Session{}, badRequest("username or email is required")
	}
	if password == "" {
		return models.Session{}, badRequest("password is required")
	}

	user, err := s.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			auth.CheckMissingUser(password)

			return models.Session{}, notFound("user does not exist")
		}
		log.Error("failed to find user", slog.Any("error", err))

		return models.Session{}, errInternal
	}

	if ok := auth.CheckPasswordHash(user.PasswordHash, password); !ok {
		return models.Session{}, unauthorized("invalid user credentials")
	}

	pair, err := s.issueSession(ctx, log, user)
	if err != nil {
		return models.Session{}, err
	}

	log.Info("user logged in", slog.String("user_id", user.ID.String()))

	return models.Session{User: user.Sanitize(), TokenPair: pair}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "service.Refresh"

	log := s.log.With(slog.String("op", op))

	if refreshToken == "" {
		return models.TokenPair{}, unauthorized("unauthorized request")
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrMissingKey) {
			log.Error("refresh key is not configured")

			return models.TokenPair{}, errInternal
		}

		return models.TokenPair{}, unauthorized("invalid refresh token")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.TokenPair{}, unauthorized("invalid refresh token")
		}
		log.Error("failed to load user", slog.Any("error", err))

		return models.TokenPair{}, errInternal
	}

	active, err := s.sessions.GetRefreshToken(ctx, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.TokenPair{}, unauthorized("invalid refresh token")
		}
		log.Error("failed to load active refresh token", slog.Any("error", err))

		return models.TokenPair{}, errInternal
	}

	// A signed, unexpired token that is no longer the active one was either
	// rotated away or cleared by logout.
	if active == "" || subtle.ConstantTimeCompare([]byte(active), []byte(refreshToken)) != 1 {
		log.Warn("stale refresh token presented", slog.String("user_id", user.ID.String()))

		return models.TokenPair{}, unauthorized("refresh token is expired or used")
	}

	return s.issueSession(ctx, log, user)
}

func (s *service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.Logout"

	log := s.log.With(slog.String("op", op))

	if err := s.sessions.ClearRefreshToken(ctx, userID); err != nil {
		log.Error("failed to clear refresh token", slog.Any("error", err))

		return errInternal
	}

	log.Info("user logged out", slog.String("user_id", userID.String()))

	return nil
}

// ChangePassword replaces the credential hash. The active refresh token is
// left in place, so existing sessions survive the change.
func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.ChangePassword"

	log := s.log.With(slog.String("op", op))

	if oldPassword == "" || newPassword == "" {
		return badRequest("old and new password are required")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return notFound("user does not exist")
		}
		log.Error("failed to load user", slog.Any("error", err))

		return errInternal
	}

	if ok := auth.CheckPasswordHash(user.PasswordHash, oldPassword); !ok {
		return badRequest("invalid old password")
	}

	if err := s.setPassword(ctx, log, user.ID, newPassword); err != nil {
		return err
	}

	log.Info("password changed", slog.String("user_id", user.ID.String()))

	return nil
}

// hashPassword is the explicit "set credential" step shared by registration
// and password change.
func hashPassword(log *slog.Logger, password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", badRequest("password is too long")
		}
		log.Error("failed to hash password", slog.Any("error", err))

		return "", errInternal
	}

	return hash, nil
}

func (s *service) setPassword(ctx context.Context, log *slog.Logger, userID uuid.UUID, password string) error {
	hash, err := hashPassword(log, password)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return notFound("user does not exist")
		}
		log.Error("failed to store password hash", slog.Any("error", err))

		return errInternal
	}

	return nil
}
