package model

// Meta carries stream metadata attached to every recentchange notification.
// ID, DT and Domain are pointers because the projector must tell a missing
// key apart from a zero value.
type Meta struct {
	URI       string  `json:"uri"`
	RequestID string  `json:"request_id"`
	ID        *string `json:"id"`
	DT        *string `json:"dt"`
	Domain    *string `json:"domain"`
	Stream    string  `json:"stream"`
	Topic     string  `json:"topic"`
	Partition int     `json:"partition"`
	Offset    int64   `json:"offset"`
}

// Length holds the article byte size before and after a revision.
type Length struct {
	Old *int64 `json:"old"`
	New *int64 `json:"new"`
}

// ChangeEvent is the decoded form of one wiki change notification. It is
// immutable once decoded; stages that adjust fields return a copy.
type ChangeEvent struct {
	Schema     string  `json:"$schema"`
	Meta       *Meta   `json:"meta"`
	Type       string  `json:"type"`
	Namespace  int     `json:"namespace"`
	Title      *string `json:"title"`
	TitleURL   *string `json:"title_url"`
	Comment    string  `json:"comment"`
	Timestamp  *int64  `json:"timestamp"`
	User       *string `json:"user"`
	Bot        *bool   `json:"bot"`
	Minor      *bool   `json:"minor"`
	Patrolled  *bool   `json:"patrolled"`
	Length     *Length `json:"length"`
	ServerURL  string  `json:"server_url"`
	ServerName string  `json:"server_name"`
	Wiki       string  `json:"wiki"`
}

// CanaryDomain marks synthetic feed-health events injected upstream.
const CanaryDomain = "canary"

// IsCanary reports whether the event is a synthetic health probe rather
// than real change data.
func (e *ChangeEvent) IsCanary() bool {
	return e.Meta != nil && e.Meta.Domain != nil && *e.Meta.Domain == CanaryDomain
}

// ProjectedRecord is the flat 13-field extract of a ChangeEvent that
// survived filtering. Timestamps are still in their source representations.
type ProjectedRecord struct {
	EventID        string
	ChangeType     string
	User           string
	Title          string
	TitleURL       string
	Bot            bool
	DatetimeUser   string // ISO-8601 with trailing Z, as delivered
	DatetimeServer int64  // Unix epoch seconds
	Domain         string
	IsMinorChange  bool
	IsPatrolled    bool
	LengthOld      int64
	LengthNew      int64
}

// OutputRow is the terminal record appended to the destination table. Both
// datetime columns carry the canonical "YYYY-MM-DD HH:MM:SS" form.
type OutputRow struct {
	EventID        string `json:"event_id"`
	ChangeType     string `json:"change_type"`
	User           string `json:"user"`
	Title          string `json:"title"`
	TitleURL       string `json:"title_url"`
	Bot            bool   `json:"bot"`
	DatetimeServer string `json:"datetime_server"`
	DatetimeUser   string `json:"datetime_user"`
	Domain         string `json:"domain"`
	IsArticleEdit  bool   `json:"is_article_edit"`
	IsMinorChange  bool   `json:"is_minor_change"`
	IsPatrolled    bool   `json:"is_patrolled"`
	LengthOld      int64  `json:"length_old"`
	LengthNew      int64  `json:"length_new"`
	EditLength     int64  `json:"edit_length"`
}
