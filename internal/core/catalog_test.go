package core

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

var testRoots = CatalogRoots{Layers: "/srk/layer/geojson", StreetParking: "/sp"}

func TestCatalog_Shape(t *testing.T) {
	names := CategoryNames()
	require.Len(t, names, 21)
	assert.Equal(t, "amenity", names[0])
	assert.Equal(t, "input", names[len(names)-1])

	seen := map[string]bool{}
	for _, entry := range Catalog {
		assert.False(t, seen[entry.Name], "duplicate category %s", entry.Name)
		seen[entry.Name] = true
		assert.NotEmpty(t, strings.TrimSpace(entry.Query), entry.Name)
		assert.True(t, strings.HasSuffix(strings.TrimSpace(entry.Query), ";"), entry.Name)
	}
}

func TestCategories_ResolvesDestinations(t *testing.T) {
	cats, err := Categories(testRoots, nil)
	require.NoError(t, err)
	require.Len(t, cats, len(Catalog))

	byName := map[string]model.FeatureCategory{}
	for _, c := range cats {
		byName[c.Name] = c
	}
	assert.Equal(t, filepath.Join("/srk/layer/geojson", "highway"), byName["highway"].DestinationDir)
	assert.Equal(t, filepath.Join("/sp", "data"), byName["input"].DestinationDir)
	assert.Contains(t, byName["amenity"].Query, `nwr["amenity"];`)
}

func TestCategories_Skip(t *testing.T) {
	cats, err := Categories(testRoots, []string{"input", "routes"})
	require.NoError(t, err)

	assert.Len(t, cats, len(Catalog)-2)
	for _, c := range cats {
		assert.NotEqual(t, "input", c.Name)
		assert.NotEqual(t, "routes", c.Name)
	}
}

func TestCategories_UnknownSkip(t *testing.T) {
	_, err := Categories(testRoots, []string{"trees"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownCategory)
	assert.Contains(t, err.Error(), `"trees"`)
}

func TestLookupCategory(t *testing.T) {
	entry, ok := LookupCategory("input")
	require.True(t, ok)
	assert.Equal(t, StreetParkingDestination, entry.Destination)
	assert.Equal(t, "street_parking", entry.Destination.String())

	entry, ok = LookupCategory("buildings")
	require.True(t, ok)
	assert.Equal(t, "layer", entry.Destination.String())

	_, ok = LookupCategory("nope")
	assert.False(t, ok)
}
