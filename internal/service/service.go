package service

import (
	"context"
	"log/slog"

	"videotube/internal/auth"
	"videotube/internal/media"
	"videotube/internal/models"
	"videotube/internal/storage"

	"github.com/gofrs/uuid"
)

type Service interface {
	Register(ctx context.Context, in RegisterInput) (models.PublicUser, error)
	Login(ctx context.Context, identifier, password string) (models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error

	CurrentUser(ctx context.Context, userID uuid.UUID) (models.PublicUser, error)
	UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullname, email string) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, file *media.File) (models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, file *media.File) (models.PublicUser, error)
	GetChannelProfile(ctx context.Context, username string, viewerID uuid.NullUUID) (models.ChannelProfile, error)
}

type TokenManager interface {
	IssueAccess(user models.User) (string, error)
	IssueRefresh(userID uuid.UUID) (string, error)
	VerifyRefresh(token string) (*auth.RefreshClaims, error)
}

type MediaStorage interface {
	Upload(ctx context.Context, folder string, file *media.File) (string, error)
	Delete(ctx context.Context, url string) error
}

type service struct {
	users    storage.UserStorage
	sessions storage.SessionStorage
	tokens   TokenManager
	media    MediaStorage
	log      *slog.Logger
}

func NewService(users storage.UserStorage, sessions storage.SessionStorage, tokens TokenManager, mediaStorage MediaStorage, lgr *slog.Logger) *service {
	return &service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		media:    mediaStorage,
		log:      lgr,
	}
}
