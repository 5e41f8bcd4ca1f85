package venue

import (
	"regexp"
	"strings"

	"kcevents/internal/model"
)

func coord(v float64) *float64 { return &v }

// Builtin is the curated table of venues the group uses. Meetup's GraphQL API
// does not expose venue details, so they are maintained by hand. Order is
// significant: see Resolver.
var Builtin = []model.Venue{
	{
		Name:       "Lenexa Public Market",
		Address:    "8750 Penrose Ln",
		City:       "Lenexa",
		State:      "KS",
		PostalCode: "66219",
		Lat:        coord(38.9539),
		Lng:        coord(-94.7336),
	},
	{
		Name:       "Keystone CoLAB",
		Address:    "5015 Main St",
		City:       "Kansas City",
		State:      "MO",
		PostalCode: "64112",
		Lat:        coord(39.0403),
		Lng:        coord(-94.5897),
	},
}

// Resolver maps free-text venue names onto the curated table.
//
// Lookup order:
//  1. exact, case-sensitive name match
//  2. case-insensitive name match
//  3. case-insensitive substring match in either direction; the longest
//     matching table name wins, ties go to the earlier table entry
//  4. a minimal venue carrying only the given name
type Resolver struct {
	table []model.Venue
}

// NewResolver builds a resolver over entries followed by the built-in table.
// Entries with an empty name are skipped.
func NewResolver(entries ...model.Venue) *Resolver {
	table := make([]model.Venue, 0, len(entries)+len(Builtin))
	for _, e := range append(append([]model.Venue{}, entries...), Builtin...) {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		table = append(table, e)
	}
	return &Resolver{table: table}
}

// Resolve never fails: it returns nil only for an empty name.
func (r *Resolver) Resolve(name string) *model.Venue {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	for _, v := range r.table {
		if v.Name == name {
			return v.Clone()
		}
	}

	lower := strings.ToLower(name)
	for _, v := range r.table {
		if strings.ToLower(v.Name) == lower {
			return v.Clone()
		}
	}

	best := -1
	for i, v := range r.table {
		key := strings.ToLower(v.Name)
		if !strings.Contains(key, lower) && !strings.Contains(lower, key) {
			continue
		}
		if best == -1 || len(v.Name) > len(r.table[best].Name) {
			best = i
		}
	}
	if best >= 0 {
		return r.table[best].Clone()
	}

	return &model.Venue{Name: name}
}

// Entries returns the effective table in lookup order.
func (r *Resolver) Entries() []model.Venue {
	out := make([]model.Venue, len(r.table))
	copy(out, r.table)
	return out
}

// trailingAt captures whatever follows the last " at " in a title.
var trailingAt = regexp.MustCompile(`(?i)^.*\sat\s+(.+?)\s*$`)

// ExtractLocation pulls a venue name out of titles like
// "Demo Night at Keystone CoLAB". It reports false when the title carries no
// such suffix.
func ExtractLocation(title string) (string, bool) {
	m := trailingAt.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	loc := strings.TrimSpace(m[1])
	if loc == "" {
		return "", false
	}
	return loc, true
}
