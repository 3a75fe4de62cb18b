// Package config loads the hand-authored route data that drives
// splitting: direction specs, headsign overrides, route aliases and
// the agency defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tidbyt.dev/tripsplit/model"
	"tidbyt.dev/tripsplit/split"
)

//go:embed grandeprairie.yml
var grandePrairie []byte

const DateFormat = "20060102"

// Environment variables overriding the file.
const (
	EnvPolicy       = "TRIPSPLIT_POLICY"
	EnvServiceStart = "TRIPSPLIT_SERVICE_START"
	EnvServiceEnd   = "TRIPSPLIT_SERVICE_END"
)

type Agency struct {
	Name      string `yaml:"name" validate:"required"`
	Color     string `yaml:"color" validate:"omitempty,len=6,hexadecimal"`
	RouteType int    `yaml:"route_type" validate:"gte=0"`
}

// Inclusive range of YYYYMMDD dates. Services not active on any date
// in the window are dropped. Leave empty to keep all services.
type ServiceWindow struct {
	Start string `yaml:"start" validate:"omitempty,len=8,numeric"`
	End   string `yaml:"end" validate:"omitempty,len=8,numeric"`
}

type Catalog struct {
	Key   string              `yaml:"key" validate:"omitempty,oneof=stop_id stop_code"`
	Remap map[string][]string `yaml:"remap" validate:"dive,min=1,dive,required"`
}

type Direction struct {
	Label    string   `yaml:"label" validate:"required"`
	Headsign string   `yaml:"headsign"`
	Stops    []string `yaml:"stops" validate:"min=1,dive,required"`
}

type Route struct {
	RouteID            int64       `yaml:"route_id" validate:"gt=0"`
	TrustDirectionFlag bool        `yaml:"trust_direction_flag"`
	Shared             []string    `yaml:"shared" validate:"dive,required"`
	Directions         []Direction `yaml:"directions" validate:"len=2,dive"`
}

type HeadsignOverride struct {
	RouteID     int64    `yaml:"route_id" validate:"gt=0"`
	DirectionID int8     `yaml:"direction_id" validate:"oneof=0 1"`
	Raw         []string `yaml:"raw"`
	Headsign    string   `yaml:"headsign" validate:"required"`
}

type Config struct {
	Agency            Agency             `yaml:"agency"`
	ServiceWindow     ServiceWindow      `yaml:"service_window"`
	Policy            string             `yaml:"policy" validate:"omitempty,oneof=strict lenient"`
	Catalog           Catalog            `yaml:"catalog"`
	RouteAliases      map[string]int64   `yaml:"route_aliases" validate:"dive,gt=0"`
	RouteLongNames    map[int64]string   `yaml:"route_long_names" validate:"dive,required"`
	Routes            []Route            `yaml:"routes" validate:"dive"`
	HeadsignOverrides []HeadsignOverride `yaml:"headsign_overrides" validate:"dive"`
}

// Reads, validates and returns the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// The GP Transit dataset.
func Default() (*Config, error) {
	return Parse(grandePrairie)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	aliases := make(map[string]int64, len(cfg.RouteAliases))
	for name, id := range cfg.RouteAliases {
		aliases[strings.ToUpper(strings.TrimSpace(name))] = id
	}
	cfg.RouteAliases = aliases

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	return nil
}

// Parsed service window. Zero times when no window is set.
func (c *Config) Window() (time.Time, time.Time, error) {
	w := c.ServiceWindow
	if w.Start == "" && w.End == "" {
		return time.Time{}, time.Time{}, nil
	}
	if w.Start == "" || w.End == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("service window needs both start and end")
	}

	start, err := time.Parse(DateFormat, w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing service window start: %w", err)
	}
	end, err := time.Parse(DateFormat, w.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing service window end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("service window ends (%s) before it starts (%s)", w.End, w.Start)
	}
	return start, end, nil
}

func (c *Config) SplitPolicy() (split.Policy, error) {
	return split.ParsePolicy(c.Policy)
}

func (c *Config) CatalogKey() split.CatalogKey {
	if c.Catalog.Key == "" {
		return split.KeyStopID
	}
	return split.CatalogKey(c.Catalog.Key)
}

func (c *Config) Remap() map[model.StopRef][]string {
	remap := make(map[model.StopRef][]string, len(c.Catalog.Remap))
	for ref, ids := range c.Catalog.Remap {
		remap[model.StopRef(ref)] = append([]string(nil), ids...)
	}
	return remap
}

func (c *Config) Table() (*split.Table, error) {
	specs := make([]split.RouteSpec, 0, len(c.Routes))
	for _, r := range c.Routes {
		spec := split.RouteSpec{
			RouteID:            r.RouteID,
			TrustDirectionFlag: r.TrustDirectionFlag,
			Shared:             stopRefs(r.Shared),
		}
		for _, d := range r.Directions {
			spec.Directions = append(spec.Directions, split.DirectionSpec{
				Label:    model.DirectionLabel(strings.ToUpper(d.Label)),
				Headsign: d.Headsign,
				Stops:    stopRefs(d.Stops),
			})
		}
		specs = append(specs, spec)
	}
	return split.NewTable(specs...)
}

func (c *Config) Overrides() (*split.HeadsignOverrides, error) {
	overrides := make([]split.HeadsignOverride, 0, len(c.HeadsignOverrides))
	for _, o := range c.HeadsignOverrides {
		overrides = append(overrides, split.HeadsignOverride{
			RouteID:     o.RouteID,
			DirectionID: o.DirectionID,
			Raw:         o.Raw,
			Headsign:    o.Headsign,
		})
	}
	return split.NewHeadsignOverrides(overrides...)
}

// Merges dotenv files (missing ones are skipped) with the process
// environment. The process environment wins.
func Environment(dotenvFiles ...string) (map[string]string, error) {
	env := map[string]string{}
	for _, f := range dotenvFiles {
		vars, err := godotenv.Read(f)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	for _, k := range []string{EnvPolicy, EnvServiceStart, EnvServiceEnd} {
		if v, found := os.LookupEnv(k); found {
			env[k] = v
		}
	}
	return env, nil
}

// Applies TRIPSPLIT_* overrides and revalidates.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v, found := env[EnvPolicy]; found {
		c.Policy = strings.ToLower(strings.TrimSpace(v))
	}
	if v, found := env[EnvServiceStart]; found {
		c.ServiceWindow.Start = strings.TrimSpace(v)
	}
	if v, found := env[EnvServiceEnd]; found {
		c.ServiceWindow.End = strings.TrimSpace(v)
	}
	return c.Validate()
}

func stopRefs(ss []string) []model.StopRef {
	refs := make([]model.StopRef, len(ss))
	for i, s := range ss {
		refs[i] = model.StopRef(s)
	}
	return refs
}
