package split_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/split"
)

func TestCatalogFromStops(t *testing.T) {
	stops := []model.Stop{
		{ID: "1001", Code: "151"},
		{ID: "1002", Code: "151"},
		{ID: "1003", Code: "152"},
		{ID: "151"},
	}

	for _, tc := range []struct {
		name     string
		key      split.CatalogKey
		ref      model.StopRef
		expected []string
	}{
		{"stop_id", split.KeyStopID, "1002", []string{"1002"}},
		{"default key is stop_id", "", "151", []string{"151"}},
		{"stop_id ignores codes", split.KeyStopID, "151", []string{"151"}},
		{"stop_code", split.KeyStopCode, "152", []string{"1003"}},
		{"stop_code shared by platforms", split.KeyStopCode, "151", []string{"1001", "1002"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			catalog, err := split.CatalogFromStops(stops, tc.key)
			require.NoError(t, err)

			ids, err := catalog.Resolve(tc.ref)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ids)
		})
	}

	// Stops without code are not in a code keyed catalog
	catalog, err := split.CatalogFromStops(stops, split.KeyStopCode)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
	_, err = catalog.Resolve("1001")
	assert.Error(t, err)

	_, err = split.CatalogFromStops(stops, "stop_name")
	assert.Error(t, err)
}

func TestCatalogResolveUnresolved(t *testing.T) {
	catalog := identityCatalog("A", "B")

	_, err := catalog.Resolve("Z")
	require.Error(t, err)

	var unresolved *split.UnresolvedStopError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, model.StopRef("Z"), unresolved.StopRef)
	assert.Contains(t, err.Error(), "'Z'")
}

func TestCatalogResolveReturnsCopy(t *testing.T) {
	catalog := split.NewCatalog(map[model.StopRef][]string{"T": {"2", "1", "2"}})

	ids, err := catalog.Resolve("T")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	ids[0] = "mutated"
	ids, err = catalog.Resolve("T")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestCatalogWith(t *testing.T) {
	base := identityCatalog("A", "B", "C")

	remapped := base.With(map[model.StopRef][]string{
		"B": {"B1", "B2"},
		"T": {"9"},
	})

	ids, err := remapped.Resolve("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2"}, ids)

	ids, err = remapped.Resolve("T")
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, ids)

	ids, err = remapped.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids)
	assert.Equal(t, 4, remapped.Len())

	// Base catalog is untouched
	ids, err = base.Resolve("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ids)
	_, err = base.Resolve("T")
	assert.Error(t, err)
}
