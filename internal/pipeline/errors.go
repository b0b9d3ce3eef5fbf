package pipeline

import "fmt"

// DecodeError reports a payload that could not be parsed as a change event.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProjectionError reports a required field missing from the source event.
// Field is the JSON path of the missing key, e.g. "meta.id" or "length.old".
type ProjectionError struct {
	Field string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("project event: missing required field %q", e.Field)
}

// EnrichError reports a timestamp that could not be normalized.
type EnrichError struct {
	Field string
	Err   error
}

func (e *EnrichError) Error() string {
	return fmt.Sprintf("enrich record: %s: %v", e.Field, e.Err)
}

func (e *EnrichError) Unwrap() error { return e.Err }
