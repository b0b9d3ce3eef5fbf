package pipeline

import (
	"encoding/json"
	"strings"

	"wikiflow/internal/model"
)

// Decode parses a raw bus payload into a ChangeEvent.
func Decode(raw []byte) (*model.ChangeEvent, error) {
	var evt model.ChangeEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &evt, nil
}

// IsEdit reports whether the event is a page edit. Creations, log entries
// and category changes are discarded; only edits carry the data we model.
func IsEdit(evt *model.ChangeEvent) bool {
	return evt.Type == "edit"
}

// Normalize returns a copy of the event with absent minor/patrolled flags
// set to false. The upstream feed does not distinguish false-but-present
// from absent, so both collapse to false.
func Normalize(evt *model.ChangeEvent) *model.ChangeEvent {
	out := *evt
	if out.Minor == nil {
		f := false
		out.Minor = &f
	}
	if out.Patrolled == nil {
		f := false
		out.Patrolled = &f
	}
	return &out
}

// Project extracts the fixed field set into a flat record. Any required
// field missing from the source yields a ProjectionError naming it; no
// partial records are emitted. Normalize must run first so the minor and
// patrolled flags are always present.
func Project(evt *model.ChangeEvent) (*model.ProjectedRecord, error) {
	if evt.Meta == nil {
		return nil, &ProjectionError{Field: "meta"}
	}
	if evt.Meta.ID == nil {
		return nil, &ProjectionError{Field: "meta.id"}
	}
	if evt.Meta.DT == nil {
		return nil, &ProjectionError{Field: "meta.dt"}
	}
	if evt.Meta.Domain == nil {
		return nil, &ProjectionError{Field: "meta.domain"}
	}
	if evt.User == nil {
		return nil, &ProjectionError{Field: "user"}
	}
	if evt.Title == nil {
		return nil, &ProjectionError{Field: "title"}
	}
	if evt.TitleURL == nil {
		return nil, &ProjectionError{Field: "title_url"}
	}
	if evt.Bot == nil {
		return nil, &ProjectionError{Field: "bot"}
	}
	if evt.Timestamp == nil {
		return nil, &ProjectionError{Field: "timestamp"}
	}
	if evt.Minor == nil {
		return nil, &ProjectionError{Field: "minor"}
	}
	if evt.Patrolled == nil {
		return nil, &ProjectionError{Field: "patrolled"}
	}
	if evt.Length == nil {
		return nil, &ProjectionError{Field: "length"}
	}
	if evt.Length.Old == nil {
		return nil, &ProjectionError{Field: "length.old"}
	}
	if evt.Length.New == nil {
		return nil, &ProjectionError{Field: "length.new"}
	}

	return &model.ProjectedRecord{
		EventID:        *evt.Meta.ID,
		ChangeType:     evt.Type,
		User:           *evt.User,
		Title:          *evt.Title,
		TitleURL:       *evt.TitleURL,
		Bot:            *evt.Bot,
		DatetimeUser:   *evt.Meta.DT,
		DatetimeServer: *evt.Timestamp,
		Domain:         *evt.Meta.Domain,
		IsMinorChange:  *evt.Minor,
		IsPatrolled:    *evt.Patrolled,
		LengthOld:      *evt.Length.Old,
		LengthNew:      *evt.Length.New,
	}, nil
}

// articleSuffix classifies a domain as a Wikipedia article host. This is a
// bare suffix match with no delimiter boundary, so "notwikipedia.org" also
// classifies as an article edit; the looser match is the published behavior.
const articleSuffix = "wikipedia.org"

// Enrich derives the output columns and normalizes both timestamps into the
// canonical form.
func Enrich(rec *model.ProjectedRecord) (*model.OutputRow, error) {
	user, err := reformatISO(rec.DatetimeUser)
	if err != nil {
		return nil, &EnrichError{Field: "datetime_user", Err: err}
	}
	return &model.OutputRow{
		EventID:        rec.EventID,
		ChangeType:     rec.ChangeType,
		User:           rec.User,
		Title:          rec.Title,
		TitleURL:       rec.TitleURL,
		Bot:            rec.Bot,
		DatetimeServer: formatEpoch(rec.DatetimeServer),
		DatetimeUser:   user,
		Domain:         rec.Domain,
		IsArticleEdit:  strings.HasSuffix(rec.Domain, articleSuffix),
		IsMinorChange:  rec.IsMinorChange,
		IsPatrolled:    rec.IsPatrolled,
		LengthOld:      rec.LengthOld,
		LengthNew:      rec.LengthNew,
		EditLength:     rec.LengthNew - rec.LengthOld,
	}, nil
}
