package sentry

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Issue is the summary of an issue as returned by the project issues endpoint.
type Issue struct {
	ID        string    `json:"id"`
	ShortID   string    `json:"shortId"`
	Title     string    `json:"title"`
	Culprit   string    `json:"culprit"`
	Permalink string    `json:"permalink"`
	Level     string    `json:"level"`
	Status    string    `json:"status"`
	Count     string    `json:"count"`
	LastSeen  time.Time `json:"lastSeen"`
	Tags      []Tag     `json:"tags,omitempty"`
}

// Tag is a key/value pair attached to an issue or event.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is the most recent occurrence of an issue, including its raw entries.
type Event struct {
	ID      string  `json:"id"`
	EventID string  `json:"eventID"`
	GroupID string  `json:"groupID"`
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Entries []Entry `json:"entries"`
	Tags    []Tag   `json:"tags,omitempty"`
}

// Entry is one typed section of an event ("exception", "breadcrumbs", "request", ...).
// Data is kept raw; its shape depends on Type.
type Entry struct {
	Type string          `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

// Entry types of interest.
const (
	EntryTypeException = "exception"
)

// APIError describes a non-2xx answer from the Sentry API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sentry API error: %s %s: status %d, body: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
