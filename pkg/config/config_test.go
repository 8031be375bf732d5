package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmonauts/whalewatching/pkg/boost"
	"github.com/cosmonauts/whalewatching/pkg/types"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "whalewatching.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://rest.stargaze-apis.com", c.LCDURL)
	assert.Equal(t, "stars", c.AddressPrefix)
	assert.Equal(t, 10*time.Second, c.HTTPTimeout)
	assert.Equal(t, 32, c.Resolve.Concurrency)
	assert.Equal(t, 50, c.Resolve.RatePerSec)
	assert.False(t, c.Resolve.ParallelCollections)
	assert.Equal(t, boost.DefaultParams(), c.Boost)
	assert.Equal(t, "whalewatching.json", c.Output.Path)
	assert.Equal(t, "json", c.Output.Format)

	supplies := map[types.Role]int{}
	var primary types.Collection
	for _, col := range c.Collections {
		supplies[col.Role] = col.Supply
		if col.Role == types.RolePrimary {
			primary = col
		}
	}
	assert.Equal(t, map[types.Role]int{
		types.RolePrimary:     384,
		types.RoleStarty:      1111,
		types.RoleHonorStarty: 1111,
		types.RolePlanet:      5000,
		types.RoleBad:         2000,
	}, supplies)

	assert.Equal(t, "cosmonaut", primary.Name)
	assert.Equal(t, "stars18tj7yvh7qxv29wtr4angy4gqycrrj9e5j9susaes7vd4tqafzthq5h2m8r", primary.Minter)
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeFile(t, `
lcd_url: http://localhost:1317
resolve:
  concurrency: 8
  parallel_collections: true
boost:
  planet:
    divisor: 15
    cap: 0.5
output:
  format: csv
  top: 5
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1317", c.LCDURL)
	assert.Equal(t, 8, c.Resolve.Concurrency)
	assert.True(t, c.Resolve.ParallelCollections)
	// untouched keys keep their defaults
	assert.Equal(t, 50, c.Resolve.RatePerSec)
	assert.Equal(t, boost.Term{Divisor: 15, Cap: 0.5}, c.Boost.Planet)
	assert.Equal(t, boost.Term{Divisor: 10, Cap: 1.0}, c.Boost.Starty)
	assert.Equal(t, "csv", c.Output.Format)
	assert.Equal(t, 5, c.Output.Top)
	assert.Len(t, c.Collections, 5)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "lcd_urll: x\n", "field lcd_urll not found"},
		{"bad divisor", "boost:\n  bad:\n    divisor: 0\n    cap: 1\n", "boost.bad.divisor must be positive"},
		{"negative cap", "boost:\n  starty:\n    divisor: 10\n    cap: -1\n", "boost.starty.cap must not be negative"},
		{"bad format", "output:\n  format: xml\n", `output.format "xml"`},
		{"zero concurrency", "resolve:\n  concurrency: 0\n", "resolve.concurrency must be positive"},
		{"bad duration", "http_timeout: soon\n", "soon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateCollections(t *testing.T) {
	base, err := Default()
	require.NoError(t, err)

	t.Run("missing role", func(t *testing.T) {
		c := *base
		c.Collections = base.Collections[:4]
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no collection with role bad")
	})
	t.Run("duplicate primary", func(t *testing.T) {
		c := *base
		c.Collections = append([]types.Collection{}, base.Collections...)
		c.Collections[1].Role = types.RolePrimary
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collections[1] role primary already used by collections[0]")
	})
	t.Run("zero supply", func(t *testing.T) {
		c := *base
		c.Collections = append([]types.Collection{}, base.Collections...)
		c.Collections[2].Supply = 0
		assert.EqualError(t, c.Validate(), "collections[2] supply must be positive")
	})
	t.Run("wrong prefix", func(t *testing.T) {
		c := *base
		c.AddressPrefix = "cosmos"
		err := c.Validate()
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "collections[0] minter"), err.Error())
	})
	t.Run("unknown role", func(t *testing.T) {
		c := *base
		c.Collections = append([]types.Collection{}, base.Collections...)
		c.Collections[3].Role = "moon"
		assert.EqualError(t, c.Validate(), `collections[3] unknown role "moon"`)
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	c.Resolve.Concurrency = 7

	b, err := c.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(b), "http_timeout: 10s")

	got, err := Load(writeFile(t, string(b)))
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
