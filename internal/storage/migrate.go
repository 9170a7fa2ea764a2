package storage

import (
	"context"
	"database/sql"
	"fmt"

	"videotube/internal/storage/migrations"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate brings the schema at DbURL up to date. It opens its own
// database/sql handle because goose does not work with pgxpool.
func Migrate(ctx context.Context, DbURL string) error {
	const op = "storage.Migrate"

	db, err := sql.Open("pgx", DbURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
