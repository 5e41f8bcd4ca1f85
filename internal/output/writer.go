package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"kcevents/internal/fsutil"
	"kcevents/internal/ics"
	appLog "kcevents/internal/log"
	"kcevents/internal/model"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// WriteError reports a filesystem failure while persisting an artifact.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer persists the events document, and optionally its calendar feed, to
// well-known paths. Every write replaces the previous artifact wholesale.
type Writer struct {
	EventsPath string
	// CalendarPath, when set, also receives an iCalendar rendering.
	CalendarPath string
	Calendar     ics.Options
	// Now stamps fallback documents; time.Now when nil.
	Now func() time.Time
}

// Write persists doc. The calendar feed, if enabled, is written before the
// JSON so that a failure leaves events.json untouched.
func (w *Writer) Write(doc model.EventsDocument) error {
	if doc.Events == nil {
		doc.Events = []model.Event{}
	}

	data, err := Encode(doc)
	if err != nil {
		return &WriteError{Path: w.EventsPath, Err: err}
	}

	if w.CalendarPath != "" {
		if err := fsutil.WriteFileAtomic(w.CalendarPath, ics.Encode(doc, w.Calendar), filePerm, dirPerm); err != nil {
			return &WriteError{Path: w.CalendarPath, Err: err}
		}
	}

	if err := fsutil.WriteFileAtomic(w.EventsPath, data, filePerm, dirPerm); err != nil {
		return &WriteError{Path: w.EventsPath, Err: err}
	}

	appLog.Info("events written", "path", w.EventsPath, "count", len(doc.Events), "calendar", w.CalendarPath, "fallback", doc.IsFallback())
	return nil
}

// WriteFallback persists an empty document carrying reason as its note and
// returns what was written.
func (w *Writer) WriteFallback(reason string) (model.EventsDocument, error) {
	if reason == "" {
		reason = "No events available"
	}
	doc := model.EventsDocument{
		Events:      []model.Event{},
		LastUpdated: w.now(),
		Note:        reason,
	}
	return doc, w.Write(doc)
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

// Encode renders doc as two-space indented JSON with a trailing newline.
// HTML characters are left unescaped since the consumer is a JSON reader.
func Encode(doc model.EventsDocument) ([]byte, error) {
	if doc.Events == nil {
		doc.Events = []model.Event{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
