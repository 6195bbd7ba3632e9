package model

import "errors"

// Failure kinds shared by the ingestion and summarization stages.
var (
	// ErrFeedUnavailable means the feed call failed or returned a non-success status.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrStoreUnavailable means an object store read or write failed.
	// A missing key on read is not reported with this error.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotifyUnavailable means a notification could not be published.
	ErrNotifyUnavailable = errors.New("notify unavailable")
	// ErrInvalidMessage means a notification was malformed or named a missing log.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrGenerationFailure means the text generator failed.
	ErrGenerationFailure = errors.New("generation failure")
)
