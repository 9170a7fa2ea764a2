package storage

import (
	"context"
	"errors"
	"fmt"

	"videotube/internal/models"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	usersTable         = "users"
	subscriptionsTable = "subscriptions"

	userColumns = "id, username, email, fullname, avatar, cover_image, password_hash, created_at, updated_at"

	uniqueViolation = "23505"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user with username or email already exists")
)

type UserStorage interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	// GetUserByIdentifier matches either the username or the email.
	GetUserByIdentifier(ctx context.Context, identifier string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullname, email string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, url string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, url string) (models.User, error)

	GetChannelProfile(ctx context.Context, username string, viewerID uuid.NullUUID) (models.ChannelProfile, error)
}

// SessionStorage is the one-slot session record kept per user. Set always
// overwrites; Clear is idempotent.
type SessionStorage interface {
	GetRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
}

type Storage interface {
	UserStorage
	SessionStorage

	Close()
}

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Fullname,
		&user.Avatar,
		&user.CoverImage,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

// wrapErr maps driver errors onto the package sentinels.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrUserExists)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	query := fmt.Sprintf(`INSERT INTO %s(username, email, fullname, avatar, cover_image, password_hash)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING %s;`, usersTable, userColumns)

	created, err := scanUser(p.db.QueryRow(ctx, query,
		user.Username, user.Email, user.Fullname, user.Avatar, user.CoverImage, user.PasswordHash))
	if err != nil {
		return models.User{}, wrapErr(op, err)
	}

	return created, nil
}

func (p *PostgresStorage) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	const op = "storage.GetUserByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1;", userColumns, usersTable)

	user, err := scanUser(p.db.QueryRow(ctx, query, userID))
	if err != nil {
		return models.User{}, wrapErr(op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	const op = "storage.GetUserByIdentifier"

	// An email match wins over a username that happens to equal it.
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE username=lower($1) OR email=lower($1) ORDER BY (email=lower($1)) DESC LIMIT 1;",
		userColumns, usersTable,
	)

	user, err := scanUser(p.db.QueryRow(ctx, query, identifier))
	if err != nil {
		return models.User{}, wrapErr(op, err)
	}

	return user, nil
}

func (p *PostgresStorage) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const op = "storage.ExistsByUsernameOrEmail"

	var exists bool
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE username IN (lower($1), lower($2)) OR email IN (lower($1), lower($2)));",
		usersTable,
	)

	if err := p.db.QueryRow(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

func (p *PostgresStorage) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	const op = "storage.UpdatePasswordHash"

	query := fmt.Sprintf("UPDATE %s SET password_hash=$1, updated_at=now() WHERE id=$2", usersTable)

	tag, err := p.db.Exec(ctx, query, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func (p *PostgresStorage) updateReturning(ctx context.Context, op, set string, args ...any) (models.User, error) {
	query := fmt.Sprintf("UPDATE %s SET %s, updated_at=now() WHERE id=$1 RETURNING %s;", usersTable, set, userColumns)

	user, err := scanUser(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		return models.User{}, wrapErr(op, err)
	}

	return user, nil
}

func (p *PostgresStorage) UpdateAccountDetails(ctx context.Context, userID uuid.UUID, fullname, email string) (models.User, error) {
	return p.updateReturning(ctx, "storage.UpdateAccountDetails", "fullname=$2, email=lower($3)", userID, fullname, email)
}

func (p *PostgresStorage) UpdateAvatar(ctx context.Context, userID uuid.UUID, url string) (models.User, error) {
	return p.updateReturning(ctx, "storage.UpdateAvatar", "avatar=$2", userID, url)
}

func (p *PostgresStorage) UpdateCoverImage(ctx context.Context, userID uuid.UUID, url string) (models.User, error) {
	return p.updateReturning(ctx, "storage.UpdateCoverImage", "cover_image=$2", userID, url)
}

func (p *PostgresStorage) GetChannelProfile(ctx context.Context, username string, viewerID uuid.NullUUID) (models.ChannelProfile, error) {
	const op = "storage.GetChannelProfile"

	var channel models.ChannelProfile
	query := fmt.Sprintf(`SELECT
	u.id, u.username, u.fullname, u.email, u.avatar, u.cover_image,
	(SELECT count(*) FROM %[2]s s WHERE s.channel_id = u.id),
	(SELECT count(*) FROM %[2]s s WHERE s.subscriber_id = u.id),
	EXISTS(SELECT 1 FROM %[2]s s WHERE s.channel_id = u.id AND s.subscriber_id = $2)
	FROM %[1]s u WHERE u.username = lower($1);`, usersTable, subscriptionsTable)

	err := p.db.QueryRow(ctx, query, username, viewerID).Scan(
		&channel.ID,
		&channel.Username,
		&channel.Fullname,
		&channel.Email,
		&channel.Avatar,
		&channel.CoverImage,
		&channel.SubscribersCount,
		&channel.ChannelsSubscribedToCount,
		&channel.IsSubscribed,
	)
	if err != nil {
		return channel, wrapErr(op, err)
	}

	return channel, nil
}

func (p *PostgresStorage) GetRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	const op = "storage.GetRefreshToken"

	var token string
	query := fmt.Sprintf("SELECT COALESCE(refresh_token, '') FROM %s WHERE id=$1;", usersTable)

	if err := p.db.QueryRow(ctx, query, userID).Scan(&token); err != nil {
		return "", wrapErr(op, err)
	}

	return token, nil
}

func (p *PostgresStorage) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	const op = "storage.SetRefreshToken"

	query := fmt.Sprintf("UPDATE %s SET refresh_token=$1 WHERE id=$2", usersTable)

	tag, err := p.db.Exec(ctx, query, token, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return nil
}

func (p *PostgresStorage) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.ClearRefreshToken"

	query := fmt.Sprintf("UPDATE %s SET refresh_token=NULL WHERE id=$1", usersTable)

	if _, err := p.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}
