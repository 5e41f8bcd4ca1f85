package model

import "time"

// Event is the canonical, persisted representation of an upcoming meetup.
// Field order here is the field order of events.json.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DateTime    time.Time `json:"dateTime"`
	// Duration is the length of the event in minutes; always > 0.
	Duration int    `json:"duration"`
	Venue    *Venue `json:"venue"`
	Link     string `json:"link,omitempty"`
}

// End returns the event end derived from DateTime and Duration.
func (e Event) End() time.Time {
	return e.DateTime.Add(time.Duration(e.Duration) * time.Minute)
}

// Venue is where an event takes place. Name/Address/City/State are always
// serialized (empty when unknown); the remaining fields only exist for venues
// resolved from the curated table.
type Venue struct {
	Name       string   `json:"name" yaml:"name"`
	Address    string   `json:"address" yaml:"address"`
	City       string   `json:"city" yaml:"city"`
	State      string   `json:"state" yaml:"state"`
	PostalCode string   `json:"postalCode,omitempty" yaml:"postal_code,omitempty"`
	Lat        *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty" yaml:"lng,omitempty"`
}

// Clone returns a deep copy so callers can't mutate curated table entries.
func (v Venue) Clone() *Venue {
	out := v
	if v.Lat != nil {
		lat := *v.Lat
		out.Lat = &lat
	}
	if v.Lng != nil {
		lng := *v.Lng
		out.Lng = &lng
	}
	return &out
}

// EventsDocument is the artifact consumed by the website.
type EventsDocument struct {
	Events      []Event   `json:"events"`
	LastUpdated time.Time `json:"lastUpdated"`
	// Note is only set on fallback documents.
	Note string `json:"note,omitempty"`
}

// IsFallback reports whether the document was written after a failed run.
func (d EventsDocument) IsFallback() bool {
	return d.Note != ""
}
