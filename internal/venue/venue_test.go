package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcevents/internal/model"
)

func TestResolveExactMatch(t *testing.T) {
	r := NewResolver()

	v := r.Resolve("Keystone CoLAB")
	require.NotNil(t, v)
	assert.Equal(t, "5015 Main St", v.Address)
	assert.Equal(t, "Kansas City", v.City)
	assert.Equal(t, "MO", v.State)
	assert.Equal(t, "64112", v.PostalCode)
	require.NotNil(t, v.Lat)
	assert.InDelta(t, 39.0403, *v.Lat, 1e-9)
}

func TestResolveCaseInsensitiveAndSubstring(t *testing.T) {
	r := NewResolver()

	cases := map[string]string{
		"keystone colab":                  "Keystone CoLAB",
		"Keystone":                        "Keystone CoLAB",
		"the Lenexa Public Market patio":  "Lenexa Public Market",
		"  Lenexa Public Market  ":        "Lenexa Public Market",
		"LENEXA PUBLIC MARKET food court": "Lenexa Public Market",
	}
	for query, want := range cases {
		v := r.Resolve(query)
		require.NotNil(t, v, query)
		assert.Equal(t, want, v.Name, query)
	}
}

func TestResolveUnknownFabricatesMinimalVenue(t *testing.T) {
	v := NewResolver().Resolve("Some Coffee Shop")
	require.NotNil(t, v)
	assert.Equal(t, model.Venue{Name: "Some Coffee Shop"}, *v)
}

func TestResolveEmpty(t *testing.T) {
	r := NewResolver()
	assert.Nil(t, r.Resolve(""))
	assert.Nil(t, r.Resolve("   "))
}

func TestResolveLongestSubstringWins(t *testing.T) {
	r := NewResolver(
		model.Venue{Name: "Market", City: "Short"},
		model.Venue{Name: "Market Hall", City: "Long"},
	)

	v := r.Resolve("the market hall downstairs")
	require.NotNil(t, v)
	assert.Equal(t, "Long", v.City)
}

func TestResolveTiesGoToTableOrder(t *testing.T) {
	r := NewResolver(
		model.Venue{Name: "Plaza A", City: "First"},
		model.Venue{Name: "Plaza B", City: "Second"},
	)

	v := r.Resolve("plaza")
	require.NotNil(t, v)
	assert.Equal(t, "First", v.City)
}

func TestConfiguredEntriesTakePrecedence(t *testing.T) {
	r := NewResolver(model.Venue{Name: "Keystone CoLAB", City: "Overridden"})

	assert.Equal(t, "Overridden", r.Resolve("Keystone CoLAB").City)
	assert.Len(t, r.Entries(), len(Builtin)+1)
}

func TestResolveReturnsCopies(t *testing.T) {
	r := NewResolver()
	v := r.Resolve("Keystone CoLAB")
	v.City = "mutated"
	*v.Lat = 0

	again := r.Resolve("Keystone CoLAB")
	assert.Equal(t, "Kansas City", again.City)
	assert.InDelta(t, 39.0403, *again.Lat, 1e-9)
}

func TestExtractLocation(t *testing.T) {
	cases := []struct {
		title string
		want  string
		ok    bool
	}{
		{"Demo Night at Keystone CoLAB", "Keystone CoLAB", true},
		{"Coffee AT Lenexa Public Market ", "Lenexa Public Market", true},
		{"Lunch at noon at The Roasterie", "The Roasterie", true},
		{"Monthly Coffee Chat", "", false},
		{"Chatting about Go", "", false},
		{"at home", "", false},
		{"Coding at   ", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractLocation(tc.title)
		assert.Equal(t, tc.ok, ok, tc.title)
		assert.Equal(t, tc.want, got, tc.title)
	}
}
