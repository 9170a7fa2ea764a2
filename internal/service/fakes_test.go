package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"videotube/internal/auth"
	"videotube/internal/config"
	"videotube/internal/media"
	"videotube/internal/models"
	"videotube/internal/storage"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

// memStore keeps users and their session slot in memory.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	sessions map[uuid.UUID]string
	subs     map[uuid.UUID][]uuid.UUID // channel -> subscribers

	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]models.User),
		sessions: make(map[uuid.UUID]string),
		subs:     make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *memStore) CreateUser(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return models.User{}, m.failWith
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return models.User{}, storage.ErrUserExists
		}
	}

	user.ID = uuid.Must(uuid.NewV4())
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user

	return user, nil
}

func (m *memStore) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return models.User{}, m.failWith
	}
	user, ok := m.users[userID]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return user, nil
}

func (m *memStore) GetUserByIdentifier(_ context.Context, identifier string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return models.User{}, m.failWith
	}
	identifier = strings.ToLower(identifier)
	var byUsername *models.User
	for _, u := range m.users {
		if u.Email == identifier {
			return u, nil
		}
		if u.Username == identifier {
			byUsername = &u
		}
	}
	if byUsername != nil {
		return *byUsername, nil
	}

	return models.User{}, storage.ErrUserNotFound
}

func (m *memStore) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username || u.Email == email || u.Username == email || u.Email == username {
			return true, nil
		}
	}

	return false, nil
}

func (m *memStore) update(userID uuid.UUID, fn func(*models.User)) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now().UTC()
	m.users[userID] = user

	return user, nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, userID uuid.UUID, passwordHash string) error {
	_, err := m.update(userID, func(u *models.User) { u.PasswordHash = passwordHash })
	return err
}

func (m *memStore) UpdateAccountDetails(_ context.Context, userID uuid.UUID, fullname, email string) (models.User, error) {
	m.mu.Lock()
	for id, u := range m.users {
		if id != userID && u.Email == email {
			m.mu.Unlock()
			return models.User{}, storage.ErrUserExists
		}
	}
	m.mu.Unlock()

	return m.update(userID, func(u *models.User) {
		u.Fullname = fullname
		u.Email = email
	})
}

func (m *memStore) UpdateAvatar(_ context.Context, userID uuid.UUID, url string) (models.User, error) {
	return m.update(userID, func(u *models.User) { u.Avatar = url })
}

func (m *memStore) UpdateCoverImage(_ context.Context, userID uuid.UUID, url string) (models.User, error) {
	return m.update(userID, func(u *models.User) { u.CoverImage = url })
}

func (m *memStore) GetChannelProfile(_ context.Context, username string, viewerID uuid.NullUUID) (models.ChannelProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username != username {
			continue
		}

		profile := models.ChannelProfile{
			ID:               u.ID,
			Username:         u.Username,
			Fullname:         u.Fullname,
			Email:            u.Email,
			Avatar:           u.Avatar,
			CoverImage:       u.CoverImage,
			SubscribersCount: int64(len(m.subs[u.ID])),
		}
		for _, subscriber := range m.subs[u.ID] {
			if viewerID.Valid && subscriber == viewerID.UUID {
				profile.IsSubscribed = true
			}
		}
		for _, subscribers := range m.subs {
			for _, subscriber := range subscribers {
				if subscriber == u.ID {
					profile.ChannelsSubscribedToCount++
				}
			}
		}

		return profile, nil
	}

	return models.ChannelProfile{}, storage.ErrUserNotFound
}

func (m *memStore) subscribe(subscriber, channel uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[channel] = append(m.subs[channel], subscriber)
}

func (m *memStore) GetRefreshToken(_ context.Context, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return "", storage.ErrUserNotFound
	}

	return m.sessions[userID], nil
}

func (m *memStore) SetRefreshToken(_ context.Context, userID uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.users[userID]; !ok {
		return storage.ErrUserNotFound
	}
	m.sessions[userID] = token

	return nil
}

func (m *memStore) ClearRefreshToken(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	delete(m.sessions, userID)

	return nil
}

func (m *memStore) activeToken(userID uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessions[userID]
}

// memMedia stands in for the object storage bucket.
type memMedia struct {
	mu        sync.Mutex
	objects   map[string]string
	deleted   []string
	uploadErr error
}

func newMemMedia() *memMedia {
	return &memMedia{objects: make(map[string]string)}
}

func (m *memMedia) Upload(_ context.Context, folder string, file *media.File) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}

	body, err := io.ReadAll(file.Body)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	url := "http://cdn.test/" + media.ObjectKey(folder, file.Name)
	m.objects[url] = string(body)

	return url, nil
}

func (m *memMedia) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[url]; !ok {
		return fmt.Errorf("no object %q", url)
	}
	delete(m.objects, url)
	m.deleted = append(m.deleted, url)

	return nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

type testEnv struct {
	svc    *service
	store  *memStore
	media  *memMedia
	tokens *auth.TokenManager
	clock  *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens := auth.NewTokenManager(config.Auth{
		AccessTokenSecret:  "access-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenSecret: "refresh-secret",
		RefreshTokenTTL:    10 * 24 * time.Hour,
	}, auth.WithClock(clock.Now))

	store := newMemStore()
	mm := newMemMedia()
	lgr := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		svc:    NewService(store, store, tokens, mm, lgr),
		store:  store,
		media:  mm,
		tokens: tokens,
		clock:  clock,
	}
}

func imageFile(name string) *media.File {
	return &media.File{Name: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("img")}
}

func (e *testEnv) register(t *testing.T, username, password string) models.PublicUser {
	t.Helper()

	user, err := e.svc.Register(context.Background(), RegisterInput{
		Fullname: strings.ToUpper(username[:1]) + username[1:],
		Email:    username + "@example.com",
		Username: username,
		Password: password,
		Avatar:   imageFile("avatar.png"),
	})
	require.NoError(t, err)

	return user
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, kind)

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr), "expected *service.Error, got %T", err)
	require.NotEmpty(t, svcErr.Message)
}
