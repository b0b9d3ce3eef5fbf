package sink

import (
	"context"
	"fmt"

	"wikiflow/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// clickhouseDDL is the fixed destination schema. Creation is IF NOT EXISTS;
// the writer never drops, truncates or mutates existing rows.
const clickhouseDDL = `
CREATE TABLE IF NOT EXISTS %s (
	event_id        String,
	change_type     String,
	user            String,
	title           String,
	title_url       String,
	bot             Bool,
	datetime_server DateTime('UTC'),
	datetime_user   DateTime('UTC'),
	domain          String,
	is_article_edit Bool,
	is_minor_change Bool,
	is_patrolled    Bool,
	length_old      Int64,
	length_new      Int64,
	edit_length     Int64
) ENGINE = MergeTree
ORDER BY (datetime_server, event_id)`

const clickhouseInsert = `
INSERT INTO %s (
	event_id, change_type, user, title, title_url, bot,
	datetime_server, datetime_user, domain, is_article_edit,
	is_minor_change, is_patrolled, length_old, length_new, edit_length
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ClickHouseWriter appends rows to a ClickHouse table. driver.Conn pools
// connections internally, so one writer serves all workers.
type ClickHouseWriter struct {
	dsn    string
	table  string
	conn   driver.Conn
	logger *zap.Logger
}

func NewClickHouseWriter(dsn, table string, logger *zap.Logger) *ClickHouseWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickHouseWriter{dsn: dsn, table: table, logger: logger}
}

func (w *ClickHouseWriter) Open(ctx context.Context) error {
	opts, err := clickhouse.ParseDSN(w.dsn)
	if err != nil {
		return fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}
	if err := conn.Exec(ctx, fmt.Sprintf(clickhouseDDL, w.table)); err != nil {
		return fmt.Errorf("ensure table %s: %w", w.table, err)
	}
	w.conn = conn
	w.logger.Info("clickhouse sink ready", zap.String("table", w.table))
	return nil
}

func (w *ClickHouseWriter) Write(ctx context.Context, row *model.OutputRow) error {
	if w.conn == nil {
		return &WriteError{Err: fmt.Errorf("clickhouse not connected")}
	}
	server, err := parseCanonical(row.DatetimeServer)
	if err != nil {
		return &WriteError{Err: fmt.Errorf("datetime_server %q: %w", row.DatetimeServer, err)}
	}
	user, err := parseCanonical(row.DatetimeUser)
	if err != nil {
		return &WriteError{Err: fmt.Errorf("datetime_user %q: %w", row.DatetimeUser, err)}
	}
	if err := w.conn.Exec(ctx, fmt.Sprintf(clickhouseInsert, w.table),
		row.EventID, row.ChangeType, row.User, row.Title, row.TitleURL, row.Bot,
		server, user, row.Domain, row.IsArticleEdit,
		row.IsMinorChange, row.IsPatrolled, row.LengthOld, row.LengthNew, row.EditLength,
	); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

func (w *ClickHouseWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
