package normalize

import (
	"errors"
	"math"
	"strings"
	"time"

	appLog "kcevents/internal/log"
	"kcevents/internal/meetup"
	"kcevents/internal/model"
	"kcevents/internal/venue"
)

// DefaultDurationMinutes is used when an event has no usable end time.
const DefaultDurationMinutes = 120

const statusActive = "ACTIVE"

// VenueResolver maps a venue name onto a venue record.
type VenueResolver interface {
	Resolve(name string) *model.Venue
}

// Normalizer turns raw API events into canonical events.
type Normalizer struct {
	Venues VenueResolver
	// DefaultDuration in minutes; DefaultDurationMinutes when <= 0.
	DefaultDuration int
}

// Normalize keeps events that are active and start strictly after now, in
// input order, and maps each onto model.Event. Repeated ids keep their first
// occurrence. The result is never nil and depends only on raw and now.
func (n Normalizer) Normalize(raw meetup.RawEventSet, now time.Time) []model.Event {
	out := make([]model.Event, 0, len(raw.Events))
	seen := make(map[string]struct{}, len(raw.Events))
	for _, re := range raw.Events {
		ev, ok := n.event(re, now)
		if !ok {
			continue
		}
		// First occurrence wins; ids must be unique within a document.
		if _, dup := seen[ev.ID]; dup {
			appLog.Debug("dropping duplicate event id", "id", ev.ID)
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
	}
	appLog.Info("events normalized", "raw_count", len(raw.Events), "kept", len(out))
	return out
}

func (n Normalizer) event(re meetup.RawEvent, now time.Time) (model.Event, bool) {
	if !strings.EqualFold(strings.TrimSpace(re.Status), statusActive) {
		return model.Event{}, false
	}

	start, err := ParseTime(re.DateTime)
	if err != nil {
		appLog.Debug("dropping event with unparsable dateTime", "id", re.ID, "dateTime", re.DateTime)
		return model.Event{}, false
	}
	if !start.After(now) {
		return model.Event{}, false
	}

	id := strings.TrimSpace(re.ID)
	title := strings.TrimSpace(re.Title)
	if id == "" || title == "" {
		appLog.Debug("dropping event without id or title", "id", re.ID)
		return model.Event{}, false
	}

	ev := model.Event{
		ID:          id,
		Title:       title,
		Description: deref(re.Description),
		DateTime:    start,
		Duration:    n.duration(start, re.EndTime),
		Link:        strings.TrimSpace(deref(re.EventURL)),
	}

	if n.Venues != nil {
		if loc, ok := venue.ExtractLocation(title); ok {
			ev.Venue = n.Venues.Resolve(loc)
		}
	}

	return ev, true
}

func (n Normalizer) duration(start time.Time, endTime *string) int {
	def := n.DefaultDuration
	if def <= 0 {
		def = DefaultDurationMinutes
	}
	if endTime == nil || strings.TrimSpace(*endTime) == "" {
		return def
	}
	end, err := ParseTime(*endTime)
	if err != nil {
		return def
	}
	minutes := int(math.Round(end.Sub(start).Minutes()))
	if minutes <= 0 {
		return def
	}
	return minutes
}

// timeLayouts are tried in order. Meetup emits minute precision with an
// offset ("2025-12-02T07:00-06:00"), which time.RFC3339 does not accept.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// ParseTime parses an ISO-8601 timestamp with an explicit offset.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
