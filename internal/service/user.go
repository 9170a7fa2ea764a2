package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"videotube/internal/media"
	"videotube/internal/models"
	"videotube/internal/storage"

	"github.com/gofrs/uuid"
)

type RegisterInput struct {
	Fullname   string
	Email      string
	Username   string
	Password   string
	Avatar     *media.File
	CoverImage *media.File
}

func (s *service) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	const op = "service.Register"

	log := s.log.With(slog.String("op", op))

	for _, field := range []string{in.Fullname, in.Email, in.Username, in.Password} {
		if strings.TrimSpace(field) == "" {
			return models.PublicUser{}, badRequest("all fields are required")
		}
	}

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	// Login accepts either field, so the two must never look alike.
	if strings.Contains(username, "@") {
		return models.PublicUser{}, badRequest("username must not contain '@'")
	}
	if !strings.Contains(email, "@") {
		return models.PublicUser{}, badRequest("email is invalid")
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		log.Error("failed to check existing user", slog.Any("error", err))

		return models.PublicUser{}, errInternal
	}
	if exists {
		return models.PublicUser{}, conflict("user with username or email already exists")
	}

	if in.Avatar == nil {
		return models.PublicUser{}, badRequest("avatar file is required")
	}

	passwordHash, err := hashPassword(log, in.Password)
	if err != nil {
		return models.PublicUser{}, err
	}

	avatarURL, err := s.media.Upload(ctx, media.FolderAvatars, in.Avatar)
	if err != nil {
		log.Error("failed to upload avatar", slog.Any("error", err))

		return models.PublicUser{}, errInternal
	}
	uploaded := []string{avatarURL}

	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.media.Upload(ctx, media.FolderCoverImages, in.CoverImage)
		if err != nil {
			log.Error("failed to upload cover image", slog.Any("error", err))
			s.deleteMedia(ctx, log, uploaded...)

			return models.PublicUser{}, errInternal
		}
		uploaded = append(uploaded, coverURL)
	}

	user, err := s.users.CreateUser(ctx, models.User{
		Username:     username,
		Email:        email,
		Fullname:     strings.TrimSpace(in.Fullname),
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: passwordHash,
	})
	if err != nil {
		s.deleteMedia(ctx, log, uploaded...)

		if errors.Is(err, storage.ErrUserExists) {
			return models.PublicUser{}, conflict("user with username or email already exists")
		}
		log.Error("failed to create user", slog.Any("error", err))

		return models.PublicUser{}, errInternal
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))

	return user.Sanitize(), nil
}

func (s *service) CurrentUser(ctx context.Context, userID uuid.UUID) (models.PublicUser, error) {
	const op = "service.CurrentUser"

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, s.userErr(op, err)
	}

	return user.Sanitize(), nil
}

func (s *service) UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullname, email string) (models.PublicUser, error) {
	const op = "service.UpdateAccountDetails"

	fullname, email = strings.TrimSpace(fullname), strings.TrimSpace(email)
	if fullname == "" || email == "" {
		return models.PublicUser{}, badRequest("all fields are required")
	}
	if !strings.Contains(email, "@") {
		return models.PublicUser{}, badRequest("email is invalid")
	}

	user, err := s.users.UpdateAccountDetails(ctx, userID, fullname, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return models.PublicUser{}, conflict("email is already taken")
		}
		return models.PublicUser{}, s.userErr(op, err)
	}

	return user.Sanitize(), nil
}

func (s *service) UpdateAvatar(ctx context.Context, userID uuid.UUID, file *media.File) (models.PublicUser, error) {
	if file == nil {
		return models.PublicUser{}, badRequest("avatar file is missing")
	}

	return s.replaceImage(ctx, "service.UpdateAvatar", userID, file, media.FolderAvatars,
		func(u models.User) string { return u.Avatar },
		s.users.UpdateAvatar,
	)
}

func (s *service) UpdateCoverImage(ctx context.Context, userID uuid.UUID, file *media.File) (models.PublicUser, error) {
	if file == nil {
		return models.PublicUser{}, badRequest("cover image file is missing")
	}

	return s.replaceImage(ctx, "service.UpdateCoverImage", userID, file, media.FolderCoverImages,
		func(u models.User) string { return u.CoverImage },
		s.users.UpdateCoverImage,
	)
}

// replaceImage uploads file, points the user at it and then drops the image
// it replaced. Failing to drop the old object is logged only.
func (s *service) replaceImage(
	ctx context.Context,
	op string,
	userID uuid.UUID,
	file *media.File,
	folder string,
	current func(models.User) string,
	update func(context.Context, uuid.UUID, string) (models.User, error),
) (models.PublicUser, error) {
	log := s.log.With(slog.String("op", op))

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return models.PublicUser{}, s.userErr(op, err)
	}
	previous := current(user)

	url, err := s.media.Upload(ctx, folder, file)
	if err != nil {
		log.Error("failed to upload image", slog.Any("error", err))

		return models.PublicUser{}, errInternal
	}

	updated, err := update(ctx, userID, url)
	if err != nil {
		s.deleteMedia(ctx, log, url)

		return models.PublicUser{}, s.userErr(op, err)
	}

	if previous != "" {
		s.deleteMedia(ctx, log, previous)
	}

	return updated.Sanitize(), nil
}

func (s *service) GetChannelProfile(ctx context.Context, username string, viewerID uuid.NullUUID) (models.ChannelProfile, error) {
	const op = "service.GetChannelProfile"

	username = strings.TrimSpace(username)
	if username == "" {
		return models.ChannelProfile{}, badRequest("username is missing")
	}

	channel, err := s.users.GetChannelProfile(ctx, strings.ToLower(username), viewerID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.ChannelProfile{}, notFound("channel does not exist")
		}
		s.log.Error("failed to load channel", slog.String("op", op), slog.Any("error", err))

		return models.ChannelProfile{}, errInternal
	}

	return channel, nil
}

func (s *service) userErr(op string, err error) error {
	if errors.Is(err, storage.ErrUserNotFound) {
		return notFound("user does not exist")
	}
	s.log.Error("user storage failure", slog.String("op", op), slog.Any("error", err))

	return errInternal
}

func (s *service) deleteMedia(ctx context.Context, log *slog.Logger, urls ...string) {
	for _, url := range urls {
		if err := s.media.Delete(ctx, url); err != nil {
			log.Warn("failed to delete media", slog.String("url", url), slog.Any("error", err))
		}
	}
}
