package feed

import "fmt"

// FetchErrorKind classifies feed fetch failures.
type FetchErrorKind string

const (
	FetchErrNetwork FetchErrorKind = "network"
	FetchErrTimeout FetchErrorKind = "timeout"
	FetchErrParse   FetchErrorKind = "parse"
)

// FetchError wraps a failed feed fetch with its classification. The
// scheduler logs it and moves on to the next source; it never aborts a
// fetch cycle.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
