package ics

import (
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"

	"kcevents/internal/model"
)

const (
	defaultProductID = "-//Code and Coffee KC//kcevents//EN"
	defaultUIDDomain = "kcevents"
)

// Options describes the published calendar.
type Options struct {
	// Name is shown by calendar clients (X-WR-CALNAME).
	Name string
	// ProductID is the PRODID; a project default is used when empty.
	ProductID string
	// UIDDomain is appended to event ids to build globally unique UIDs.
	UIDDomain string
}

// Build converts an events document into a PUBLISH calendar. The document's
// LastUpdated is used as DTSTAMP so identical documents yield identical feeds.
func Build(doc model.EventsDocument, opts Options) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(firstNonEmpty(opts.ProductID, defaultProductID))
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	domain := firstNonEmpty(opts.UIDDomain, defaultUIDDomain)
	for _, ev := range doc.Events {
		ve := cal.AddEvent(ev.ID + "@" + domain)
		ve.SetDtStampTime(doc.LastUpdated)
		ve.SetStartAt(ev.DateTime)
		ve.SetEndAt(ev.End())
		ve.SetSummary(ev.Title)
		ve.SetStatus(ical.ObjectStatusConfirmed)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Link != "" {
			ve.SetURL(ev.Link)
		}
		if ev.Venue != nil {
			if loc := Location(*ev.Venue); loc != "" {
				ve.SetLocation(loc)
			}
			if ev.Venue.Lat != nil && ev.Venue.Lng != nil {
				ve.SetProperty(ical.ComponentPropertyGeo, fmt.Sprintf("%.6f;%.6f", *ev.Venue.Lat, *ev.Venue.Lng))
			}
		}
	}
	return cal
}

// Encode renders the calendar as RFC 5545 text.
func Encode(doc model.EventsDocument, opts Options) []byte {
	return []byte(Build(doc, opts).Serialize())
}

// Location joins the known parts of a venue into a single LOCATION line:
// "Keystone CoLAB, 5015 Main St, Kansas City, MO 64112".
func Location(v model.Venue) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{v.Name, v.Address, v.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	stateZip := strings.TrimSpace(strings.TrimSpace(v.State) + " " + strings.TrimSpace(v.PostalCode))
	if stateZip != "" {
		parts = append(parts, stateZip)
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
