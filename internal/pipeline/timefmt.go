package pipeline

import "time"

// canonicalLayout is the single datetime form written to the sink, chosen so
// the server and user timestamps compare lexicographically.
const canonicalLayout = "2006-01-02 15:04:05"

// isoLayout matches the upstream meta.dt form exactly; the trailing Z is a
// literal, so offset forms like "+00:00" are rejected.
const isoLayout = "2006-01-02T15:04:05Z"

// formatEpoch renders Unix epoch seconds as a canonical UTC datetime string.
func formatEpoch(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(canonicalLayout)
}

// reformatISO parses an upstream ISO-8601 timestamp and rewrites it into the
// canonical form.
func reformatISO(s string) (string, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(canonicalLayout), nil
}
