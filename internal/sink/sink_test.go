package sink

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wikiflow/internal/model"
)

func sampleRow() *model.OutputRow {
	return &model.OutputRow{
		EventID:        "1",
		ChangeType:     "edit",
		User:           "u",
		Title:          "t",
		TitleURL:       "/t",
		DatetimeServer: "2023-01-01 00:00:00",
		DatetimeUser:   "2023-01-01 00:00:00",
		Domain:         "en.wikipedia.org",
		IsArticleEdit:  true,
		LengthOld:      100,
		LengthNew:      120,
		EditLength:     20,
	}
}

func TestMemoryWriterAppends(t *testing.T) {
	w := NewMemoryWriter()
	ctx := context.Background()
	if err := w.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := w.Write(ctx, sampleRow()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(ctx, sampleRow()); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Append-only: earlier rows are never replaced.
	rows := w.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].EventID != "1" || rows[1].EventID != "1" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestMemoryWriterForcedFailure(t *testing.T) {
	w := NewMemoryWriter()
	w.FailNext = true

	err := w.Write(context.Background(), sampleRow())
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %v", err)
	}

	// Failure is one-shot; the next write lands.
	if err := w.Write(context.Background(), sampleRow()); err != nil {
		t.Fatalf("write after failure: %v", err)
	}
	if len(w.Rows()) != 1 {
		t.Fatalf("expected 1 row, got %d", len(w.Rows()))
	}
}

func TestParseCanonical(t *testing.T) {
	got, err := parseCanonical("2023-11-14 22:13:20")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := parseCanonical("2023-11-14T22:13:20Z"); err == nil {
		t.Error("ISO form should not parse as canonical")
	}
}

func TestSchemasCarryAllColumns(t *testing.T) {
	columns := []string{
		"event_id", "change_type", "user", "title", "title_url", "bot",
		"datetime_server", "datetime_user", "domain", "is_article_edit",
		"is_minor_change", "is_patrolled", "length_old", "length_new", "edit_length",
	}
	for _, ddl := range []string{clickhouseDDL, postgresDDL, clickhouseInsert, postgresInsert} {
		for _, col := range columns {
			if !strings.Contains(ddl, col) {
				t.Errorf("column %q missing from statement:\n%s", col, ddl)
			}
		}
	}
	if !strings.Contains(clickhouseDDL, "IF NOT EXISTS") || !strings.Contains(postgresDDL, "IF NOT EXISTS") {
		t.Error("table creation must be IF NOT EXISTS")
	}
}
