package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cosmonauts/whalewatching/configs"
	"github.com/cosmonauts/whalewatching/pkg/address"
	"github.com/cosmonauts/whalewatching/pkg/boost"
	"github.com/cosmonauts/whalewatching/pkg/types"
)

// Config is the full raffle configuration. Fields absent from a config file
// keep their built-in defaults.
type Config struct {
	LCDURL        string        `yaml:"lcd_url"`
	AddressPrefix string        `yaml:"address_prefix"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`

	Resolve     Resolve            `yaml:"resolve"`
	Boost       boost.Params       `yaml:"boost"`
	Collections []types.Collection `yaml:"collections"`
	Output      Output             `yaml:"output"`
}

type Resolve struct {
	// Concurrency caps in-flight owner queries per collection.
	Concurrency int `yaml:"concurrency"`
	// RatePerSec paces requests across the whole run. 0 disables pacing.
	RatePerSec int  `yaml:"rate_per_sec"`
	MaxRetries uint `yaml:"max_retries"`
	// ParallelCollections resolves all collections at once instead of in order.
	ParallelCollections bool `yaml:"parallel_collections"`
}

type Output struct {
	Path          string `yaml:"path"`
	Format        string `yaml:"format"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	PostgresTable string `yaml:"postgres_table"`
	Top           int    `yaml:"top"`
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	var c Config
	if err := decode(configs.Default, &c); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	return &c, nil
}

// Load reads path over the built-in defaults and validates the result. An
// empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("default config: %w", err)
		}
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := decode(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func decode(b []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.LCDURL == "" {
		return errors.New("lcd_url is required")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http_timeout must be positive")
	}
	if c.Resolve.Concurrency <= 0 {
		return errors.New("resolve.concurrency must be positive")
	}
	if c.Resolve.RatePerSec < 0 {
		return errors.New("resolve.rate_per_sec must not be negative")
	}
	terms := []struct {
		name string
		t    boost.Term
	}{
		{"starty", c.Boost.Starty},
		{"honor_starty", c.Boost.HonorStarty},
		{"planet", c.Boost.Planet},
		{"bad", c.Boost.Bad},
	}
	for _, e := range terms {
		if e.t.Divisor <= 0 {
			return fmt.Errorf("boost.%s.divisor must be positive", e.name)
		}
		if e.t.Cap < 0 {
			return fmt.Errorf("boost.%s.cap must not be negative", e.name)
		}
	}

	seen := make(map[types.Role]int)
	for i, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("collections[%d] missing name", i)
		}
		if _, ok := roleNames[col.Role]; !ok {
			return fmt.Errorf("collections[%d] unknown role %q", i, col.Role)
		}
		if col.Supply <= 0 {
			return fmt.Errorf("collections[%d] supply must be positive", i)
		}
		if err := address.Validate(col.Minter, c.AddressPrefix); err != nil {
			return fmt.Errorf("collections[%d] minter: %w", i, err)
		}
		if j, dup := seen[col.Role]; dup {
			return fmt.Errorf("collections[%d] role %s already used by collections[%d]", i, col.Role, j)
		}
		seen[col.Role] = i
	}
	for _, role := range append([]types.Role{types.RolePrimary}, types.SecondaryRoles...) {
		if _, ok := seen[role]; !ok {
			return fmt.Errorf("collections: no collection with role %s", role)
		}
	}

	switch c.Output.Format {
	case "json", "csv":
	default:
		return fmt.Errorf("output.format %q must be json or csv", c.Output.Format)
	}
	if c.Output.Top < 0 {
		return errors.New("output.top must not be negative")
	}
	return nil
}

var roleNames = map[types.Role]struct{}{
	types.RolePrimary:     {},
	types.RoleStarty:      {},
	types.RoleHonorStarty: {},
	types.RolePlanet:      {},
	types.RoleBad:         {},
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
