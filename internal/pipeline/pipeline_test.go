package pipeline

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"wikiflow/internal/model"

	"go.uber.org/zap"
)

// baseMessage returns the end-to-end sample event as a mutable map so tests
// can knock out individual fields.
func baseMessage() map[string]any {
	return map[string]any{
		"type": "edit",
		"meta": map[string]any{
			"id":     "1",
			"domain": "en.wikipedia.org",
			"dt":     "2023-01-01T00:00:00Z",
		},
		"user":      "u",
		"title":     "t",
		"title_url": "/t",
		"bot":       false,
		"timestamp": int64(1672531200),
		"minor":     nil,
		"patrolled": nil,
		"length":    map[string]any{"old": int64(100), "new": int64(120)},
	}
}

func marshal(t *testing.T, msg map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal test message: %v", err)
	}
	return raw
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode([]byte("{not-json"))
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
}

func TestTypeFilterRejectsNonEdits(t *testing.T) {
	for _, kind := range []string{"new", "log", "categorize", "142", ""} {
		msg := baseMessage()
		msg["type"] = kind
		evt, err := Decode(marshal(t, msg))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if IsEdit(evt) {
			t.Errorf("type %q passed the edit filter", kind)
		}
	}

	evt, err := Decode(marshal(t, baseMessage()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !IsEdit(evt) {
		t.Error("edit event rejected by the edit filter")
	}
}

func TestNormalizeDefaultsAbsentFlags(t *testing.T) {
	evt, err := Decode(marshal(t, baseMessage()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Minor != nil || evt.Patrolled != nil {
		t.Fatal("null flags should decode as nil")
	}

	norm := Normalize(evt)
	if norm.Minor == nil || *norm.Minor {
		t.Error("absent minor flag should normalize to false")
	}
	if norm.Patrolled == nil || *norm.Patrolled {
		t.Error("absent patrolled flag should normalize to false")
	}
	// The input event is not mutated.
	if evt.Minor != nil || evt.Patrolled != nil {
		t.Error("Normalize mutated its input")
	}

	// Explicit true survives.
	msg := baseMessage()
	msg["minor"] = true
	evt, _ = Decode(marshal(t, msg))
	if norm := Normalize(evt); norm.Minor == nil || !*norm.Minor {
		t.Error("explicit minor=true lost during normalization")
	}
}

func TestProjectMissingRequiredFieldDrops(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(map[string]any)
	}{
		{"meta", func(m map[string]any) { delete(m, "meta") }},
		{"meta.id", func(m map[string]any) { delete(m["meta"].(map[string]any), "id") }},
		{"meta.dt", func(m map[string]any) { delete(m["meta"].(map[string]any), "dt") }},
		{"meta.domain", func(m map[string]any) { delete(m["meta"].(map[string]any), "domain") }},
		{"user", func(m map[string]any) { delete(m, "user") }},
		{"title", func(m map[string]any) { delete(m, "title") }},
		{"title_url", func(m map[string]any) { delete(m, "title_url") }},
		{"bot", func(m map[string]any) { delete(m, "bot") }},
		{"timestamp", func(m map[string]any) { delete(m, "timestamp") }},
		{"length", func(m map[string]any) { delete(m, "length") }},
		{"length.old", func(m map[string]any) { delete(m["length"].(map[string]any), "old") }},
		{"length.new", func(m map[string]any) { delete(m["length"].(map[string]any), "new") }},
	}

	for _, tc := range cases {
		msg := baseMessage()
		tc.mutate(msg)
		evt, err := Decode(marshal(t, msg))
		if err != nil {
			t.Fatalf("%s: decode: %v", tc.field, err)
		}
		rec, err := Project(Normalize(evt))
		if rec != nil {
			t.Errorf("%s: expected no record, got %+v", tc.field, rec)
		}
		var pe *ProjectionError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected *ProjectionError, got %v", tc.field, err)
			continue
		}
		if pe.Field != tc.field {
			t.Errorf("expected drop on field %q, got %q", tc.field, pe.Field)
		}
	}
}

func TestProjectWithoutNormalizeDropsOnAbsentFlags(t *testing.T) {
	evt, err := Decode(marshal(t, baseMessage()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, err = Project(evt)
	var pe *ProjectionError
	if !errors.As(err, &pe) || pe.Field != "minor" {
		t.Fatalf("expected projection drop on minor, got %v", err)
	}
}

func TestEnrichEditLength(t *testing.T) {
	cases := []struct {
		old, new, want int64
	}{
		{100, 120, 20},
		{120, 100, -20},
		{0, 0, 0},
	}
	for _, tc := range cases {
		msg := baseMessage()
		msg["length"] = map[string]any{"old": tc.old, "new": tc.new}
		row := processOne(t, msg)
		if row.EditLength != tc.want {
			t.Errorf("edit length for %d -> %d: got %d, want %d", tc.old, tc.new, row.EditLength, tc.want)
		}
	}
}

func TestEnrichArticleSuffix(t *testing.T) {
	cases := []struct {
		domain string
		want   bool
	}{
		{"en.wikipedia.org", true},
		{"de.wikipedia.org", true},
		{"en.wikinews.org", false},
		{"commons.wikimedia.org", false},
		// Bare suffix match, no delimiter boundary.
		{"notwikipedia.org", true},
	}
	for _, tc := range cases {
		msg := baseMessage()
		msg["meta"].(map[string]any)["domain"] = tc.domain
		row := processOne(t, msg)
		if row.IsArticleEdit != tc.want {
			t.Errorf("is_article_edit for %q: got %v, want %v", tc.domain, row.IsArticleEdit, tc.want)
		}
	}
}

func TestEnrichServerTimestamp(t *testing.T) {
	msg := baseMessage()
	msg["timestamp"] = int64(1700000000)
	msg["meta"].(map[string]any)["dt"] = "2023-11-14T22:13:20Z"
	row := processOne(t, msg)
	if row.DatetimeServer != "2023-11-14 22:13:20" {
		t.Errorf("datetime_server: got %q, want %q", row.DatetimeServer, "2023-11-14 22:13:20")
	}
	if row.DatetimeUser != "2023-11-14 22:13:20" {
		t.Errorf("datetime_user: got %q, want %q", row.DatetimeUser, "2023-11-14 22:13:20")
	}
}

func TestEnrichBadUserTimestampDrops(t *testing.T) {
	for _, dt := range []string{"2023-11-14 22:13:20", "2023-11-14T22:13:20+00:00", "garbage"} {
		msg := baseMessage()
		msg["meta"].(map[string]any)["dt"] = dt
		evt, err := Decode(marshal(t, msg))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		rec, err := Project(Normalize(evt))
		if err != nil {
			t.Fatalf("project: %v", err)
		}
		_, err = Enrich(rec)
		var ee *EnrichError
		if !errors.As(err, &ee) {
			t.Errorf("dt %q: expected *EnrichError, got %v", dt, err)
			continue
		}
		if ee.Field != "datetime_user" {
			t.Errorf("dt %q: unexpected field %q", dt, ee.Field)
		}
	}
}

func TestProcessEndToEnd(t *testing.T) {
	row := processOne(t, baseMessage())

	if row.EventID != "1" || row.ChangeType != "edit" || row.User != "u" ||
		row.Title != "t" || row.TitleURL != "/t" || row.Bot {
		t.Errorf("unexpected projected columns: %+v", row)
	}
	if row.EditLength != 20 {
		t.Errorf("edit_length: got %d, want 20", row.EditLength)
	}
	if !row.IsArticleEdit {
		t.Error("is_article_edit: got false, want true")
	}
	if row.IsMinorChange || row.IsPatrolled {
		t.Error("null flags should land as false")
	}
	if row.DatetimeServer != "2023-01-01 00:00:00" || row.DatetimeUser != "2023-01-01 00:00:00" {
		t.Errorf("timestamps: got %q / %q, want both 2023-01-01 00:00:00", row.DatetimeServer, row.DatetimeUser)
	}
}

func TestProcessFiltersLogEvents(t *testing.T) {
	msg := baseMessage()
	msg["type"] = "log"
	row, err := New(zap.NewNop()).Process(marshal(t, msg))
	if err != nil {
		t.Fatalf("filtered record should not error: %v", err)
	}
	if row != nil {
		t.Fatalf("log event produced a row: %+v", row)
	}
}

func TestProcessDropsCanary(t *testing.T) {
	msg := baseMessage()
	msg["meta"].(map[string]any)["domain"] = "canary"
	row, err := New(zap.NewNop()).Process(marshal(t, msg))
	if err != nil {
		t.Fatalf("canary drop should not error: %v", err)
	}
	if row != nil {
		t.Fatalf("canary event produced a row: %+v", row)
	}
}

func TestProcessIdempotent(t *testing.T) {
	p := New(zap.NewNop())
	raw := marshal(t, baseMessage())

	first, err := p.Process(raw)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := p.Process(raw)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reprocessing diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestProjectionErrorMessageNamesField(t *testing.T) {
	err := &ProjectionError{Field: "title_url"}
	if !strings.Contains(err.Error(), "title_url") {
		t.Errorf("error %q does not name the missing field", err.Error())
	}
}

func processOne(t *testing.T, msg map[string]any) *model.OutputRow {
	t.Helper()
	row, err := New(zap.NewNop()).Process(marshal(t, msg))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if row == nil {
		t.Fatal("process dropped a valid record")
	}
	return row
}
