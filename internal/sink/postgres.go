package sink

import (
	"context"
	"fmt"

	"wikiflow/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// postgresDDL mirrors the fixed destination schema. "user" is a reserved
// word in Postgres and stays quoted everywhere.
const postgresDDL = `
CREATE TABLE IF NOT EXISTS %s (
	event_id        TEXT NOT NULL,
	change_type     TEXT NOT NULL,
	"user"          TEXT NOT NULL,
	title           TEXT NOT NULL,
	title_url       TEXT NOT NULL,
	bot             BOOLEAN NOT NULL,
	datetime_server TIMESTAMP NOT NULL,
	datetime_user   TIMESTAMP NOT NULL,
	domain          TEXT NOT NULL,
	is_article_edit BOOLEAN NOT NULL,
	is_minor_change BOOLEAN NOT NULL,
	is_patrolled    BOOLEAN NOT NULL,
	length_old      BIGINT NOT NULL,
	length_new      BIGINT NOT NULL,
	edit_length     BIGINT NOT NULL
)`

const postgresInsert = `
INSERT INTO %s (
	event_id, change_type, "user", title, title_url, bot,
	datetime_server, datetime_user, domain, is_article_edit,
	is_minor_change, is_patrolled, length_old, length_new, edit_length
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// PostgresWriter appends rows to a Postgres table, selected when the
// analytical store is Postgres rather than ClickHouse.
type PostgresWriter struct {
	dsn    string
	table  string
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresWriter(dsn, table string, logger *zap.Logger) *PostgresWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresWriter{dsn: dsn, table: table, logger: logger}
}

func (w *PostgresWriter) Open(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, w.dsn)
	if err != nil {
		return fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(postgresDDL, w.table)); err != nil {
		pool.Close()
		return fmt.Errorf("ensure table %s: %w", w.table, err)
	}
	w.pool = pool
	w.logger.Info("postgres sink ready", zap.String("table", w.table))
	return nil
}

func (w *PostgresWriter) Write(ctx context.Context, row *model.OutputRow) error {
	if w.pool == nil {
		return &WriteError{Err: fmt.Errorf("postgres not connected")}
	}
	server, err := parseCanonical(row.DatetimeServer)
	if err != nil {
		return &WriteError{Err: fmt.Errorf("datetime_server %q: %w", row.DatetimeServer, err)}
	}
	user, err := parseCanonical(row.DatetimeUser)
	if err != nil {
		return &WriteError{Err: fmt.Errorf("datetime_user %q: %w", row.DatetimeUser, err)}
	}
	if _, err := w.pool.Exec(ctx, fmt.Sprintf(postgresInsert, w.table),
		row.EventID, row.ChangeType, row.User, row.Title, row.TitleURL, row.Bot,
		server, user, row.Domain, row.IsArticleEdit,
		row.IsMinorChange, row.IsPatrolled, row.LengthOld, row.LengthNew, row.EditLength,
	); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

func (w *PostgresWriter) Close() error {
	if w.pool != nil {
		w.pool.Close()
	}
	return nil
}
