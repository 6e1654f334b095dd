package store

import (
	"errors"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultLastRunFile is used when no path is configured.
const DefaultLastRunFile = "last_run.txt"

// legacyLayouts are accepted on read in addition to RFC 3339: ISO-8601 without
// a zone offset, with and without fractional seconds, interpreted as local time.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// LastRunStore persists the instant of the last successful run in a single
// file. There is no locking; only one agent instance is expected to run at a time.
type LastRunStore struct {
	path string
	log  *zap.Logger
	now  func() time.Time
}

// NewLastRunStore creates a store backed by the file at path.
func NewLastRunStore(path string, logger *zap.Logger) *LastRunStore {
	if path == "" {
		path = DefaultLastRunFile
	}
	return &LastRunStore{
		path: path,
		log:  logger.Named("store"),
		now:  time.Now,
	}
}

// Path returns the backing file location.
func (s *LastRunStore) Path() string { return s.path }

// LastRun returns the stored instant. ok is false when there is no prior run,
// which includes a missing, unreadable or unparsable file.
func (s *LastRunStore) LastRun() (t time.Time, ok bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Error("Error reading last run time.", zap.String("path", s.path), zap.Error(err))
		}
		return time.Time{}, false
	}

	raw := strings.TrimSpace(string(data))
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true
		}
	}

	s.log.Error("Error parsing last run time, treating as no prior run.", zap.String("path", s.path), zap.String("value", raw))
	return time.Time{}, false
}

// Save records the current time, overwriting any previous value. Failures are
// logged and reported through the return value only.
func (s *LastRunStore) Save() bool {
	stamp := s.now().Format(time.RFC3339Nano)
	if err := os.WriteFile(s.path, []byte(stamp), 0o644); err != nil {
		s.log.Error("Error saving last run time.", zap.String("path", s.path), zap.Error(err))
		return false
	}
	s.log.Debug("Saved last run time.", zap.String("path", s.path), zap.String("timestamp", stamp))
	return true
}
