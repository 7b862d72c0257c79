package fetcher

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by *ParseError.
var (
	ErrEmptyInput = errors.New("m3u content is empty")
	ErrNotM3U     = errors.New("content is not an M3U playlist")
)

// ParseError reports content that could not be parsed as M3U.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse m3u: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError reports a failure to download a playlist (network or non-2xx).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ReadError reports a failure to read a playlist file from disk.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }

// IsParseError reports whether err (or anything it wraps) is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
