// internal/autofix/context.go
package autofix

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/sentry-fix-agent/internal/sentry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoContext means the event does not point at a usable code location.
var ErrNoContext = errors.New("no stack context")

type exceptionData struct {
	Values []struct {
		Type       string `json:"type"`
		Value      string `json:"value"`
		Stacktrace *struct {
			Frames []map[string]jsoniter.RawMessage `json:"frames"`
		} `json:"stacktrace"`
	} `json:"values"`
}

// ExtractStackContext selects the frame an issue should be fixed in: the
// innermost in-app frame of the first exception, or its innermost frame when
// no frame is in-app. Values are copied as the payload reports them.
//
// Frames are accepted in both the snake_case form of event payloads
// (lineno, context_line, pre_context, in_app) and the camelCase form of the
// web API (lineNo, context, inApp).
func ExtractStackContext(event *sentry.Event) (*StackContext, error) {
	if event == nil {
		return nil, fmt.Errorf("%w: no event", ErrNoContext)
	}

	var entry *sentry.Entry
	for i := range event.Entries {
		if event.Entries[i].Type == sentry.EntryTypeException {
			entry = &event.Entries[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no exception entry", ErrNoContext)
	}

	var data exceptionData
	if err := json.Unmarshal(entry.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed exception entry: %v", ErrNoContext, err)
	}
	if len(data.Values) == 0 {
		return nil, fmt.Errorf("%w: no exception values", ErrNoContext)
	}
	if data.Values[0].Stacktrace == nil || len(data.Values[0].Stacktrace.Frames) == 0 {
		return nil, fmt.Errorf("%w: no stack frames", ErrNoContext)
	}
	frames := data.Values[0].Stacktrace.Frames

	selected := frames[len(frames)-1]
	for i := len(frames) - 1; i >= 0; i-- {
		var inApp bool
		if _, err := lookup(frames[i], &inApp, "in_app", "inApp"); err != nil {
			return nil, fmt.Errorf("%w: malformed frame: %v", ErrNoContext, err)
		}
		if inApp {
			selected = frames[i]
			break
		}
	}

	return frameContext(selected)
}

func frameContext(frame map[string]jsoniter.RawMessage) (*StackContext, error) {
	var sc StackContext
	fields := []struct {
		into any
		keys []string
	}{
		{&sc.FilePath, []string{"filename"}},
		{&sc.Function, []string{"function"}},
		{&sc.LineNumber, []string{"lineno", "lineNo"}},
		{&sc.ContextLine, []string{"context_line", "contextLine"}},
		{&sc.PreContext, []string{"pre_context", "preContext"}},
		{&sc.PostContext, []string{"post_context", "postContext"}},
	}
	for _, f := range fields {
		if _, err := lookup(frame, f.into, f.keys...); err != nil {
			return nil, fmt.Errorf("%w: malformed frame: %v", ErrNoContext, err)
		}
	}
	if sc.FilePath == "" {
		return nil, fmt.Errorf("%w: frame has no filename", ErrNoContext)
	}

	// The web API reports source lines as [[lineNo, text], ...] under "context".
	if _, hasLine := frame["context_line"]; !hasLine && sc.LineNumber > 0 {
		var lines [][]jsoniter.RawMessage
		found, err := lookup(frame, &lines, "context")
		if err != nil {
			return nil, fmt.Errorf("%w: malformed frame context: %v", ErrNoContext, err)
		}
		if found {
			if err := splitContext(&sc, lines); err != nil {
				return nil, fmt.Errorf("%w: malformed frame context: %v", ErrNoContext, err)
			}
		}
	}

	if sc.PreContext == nil {
		sc.PreContext = []string{}
	}
	if sc.PostContext == nil {
		sc.PostContext = []string{}
	}
	return &sc, nil
}

func splitContext(sc *StackContext, lines [][]jsoniter.RawMessage) error {
	for _, pair := range lines {
		if len(pair) != 2 {
			return fmt.Errorf("context line has %d elements", len(pair))
		}
		var number int
		var text string
		if err := json.Unmarshal(pair[0], &number); err != nil {
			return err
		}
		if err := json.Unmarshal(pair[1], &text); err != nil {
			return err
		}
		switch {
		case number < sc.LineNumber:
			sc.PreContext = append(sc.PreContext, text)
		case number == sc.LineNumber:
			sc.ContextLine = text
		default:
			sc.PostContext = append(sc.PostContext, text)
		}
	}
	return nil
}

// lookup decodes the first present, non-null key of frame into dst.
func lookup(frame map[string]jsoniter.RawMessage, dst any, keys ...string) (bool, error) {
	for _, key := range keys {
		raw, ok := frame[key]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return false, fmt.Errorf("field %q: %w", key, err)
		}
		return true, nil
	}
	return false, nil
}
