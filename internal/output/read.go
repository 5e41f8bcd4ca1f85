package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"kcevents/internal/model"
)

// ErrInvalidDocument wraps every shape violation found by Validate.
var ErrInvalidDocument = errors.New("invalid events document")

// Read loads and validates the document at path. This is the contract the
// website relies on: anything Read rejects would make the page show its retry
// state.
func Read(path string) (model.EventsDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.EventsDocument{}, err
	}
	return Decode(data)
}

// Decode parses and validates a serialized document.
func Decode(data []byte) (model.EventsDocument, error) {
	if err := checkShape(data); err != nil {
		return model.EventsDocument{}, err
	}
	var doc model.EventsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.EventsDocument{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := Validate(doc); err != nil {
		return model.EventsDocument{}, err
	}
	return doc, nil
}

// checkShape catches what a typed decode would silently accept: a missing or
// null events array and missing timestamps.
func checkShape(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	events, ok := top["events"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(events), []byte("[")) {
		return fmt.Errorf("%w: events must be an array", ErrInvalidDocument)
	}
	if _, ok := top["lastUpdated"]; !ok {
		return fmt.Errorf("%w: lastUpdated is required", ErrInvalidDocument)
	}

	var rawEvents []map[string]json.RawMessage
	if err := json.Unmarshal(events, &rawEvents); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for i, ev := range rawEvents {
		for _, key := range []string{"id", "title", "description", "dateTime", "duration", "venue"} {
			if _, ok := ev[key]; !ok {
				return fmt.Errorf("%w: events[%d].%s is required", ErrInvalidDocument, i, key)
			}
		}
		v := bytes.TrimSpace(ev["venue"])
		if bytes.Equal(v, []byte("null")) {
			continue
		}
		var venue map[string]json.RawMessage
		if err := json.Unmarshal(v, &venue); err != nil {
			return fmt.Errorf("%w: events[%d].venue must be an object or null", ErrInvalidDocument, i)
		}
		for _, key := range []string{"name", "address", "city", "state"} {
			if _, ok := venue[key]; !ok {
				return fmt.Errorf("%w: events[%d].venue.%s is required", ErrInvalidDocument, i, key)
			}
		}
	}
	return nil
}

// Validate checks the invariants every persisted document must satisfy.
func Validate(doc model.EventsDocument) error {
	if doc.Events == nil {
		return fmt.Errorf("%w: events must be an array", ErrInvalidDocument)
	}
	if doc.LastUpdated.IsZero() {
		return fmt.Errorf("%w: lastUpdated is required", ErrInvalidDocument)
	}
	seen := make(map[string]struct{}, len(doc.Events))
	for i, ev := range doc.Events {
		switch {
		case ev.ID == "":
			return fmt.Errorf("%w: events[%d].id is empty", ErrInvalidDocument, i)
		case ev.Title == "":
			return fmt.Errorf("%w: events[%d].title is empty", ErrInvalidDocument, i)
		case ev.DateTime.IsZero():
			return fmt.Errorf("%w: events[%d].dateTime is missing", ErrInvalidDocument, i)
		case ev.Duration <= 0:
			return fmt.Errorf("%w: events[%d].duration must be positive", ErrInvalidDocument, i)
		}
		if _, dup := seen[ev.ID]; dup {
			return fmt.Errorf("%w: events[%d].id %q is duplicated", ErrInvalidDocument, i, ev.ID)
		}
		seen[ev.ID] = struct{}{}
	}
	return nil
}
