// Package config loads service settings from an ini file, with a few
// environment overrides. A missing file yields the built-in defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

const DefaultPath = "conf/flashgrid.ini"

type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	RateLimit       float64
	RateBurst       int
	TokenKey        string
	AllowOrigin     string
}

type Log struct {
	Level  string
	Format string
}

// Range is a default axis used when a request leaves one out.
type Range struct {
	From, To, Resolution float64
}

type Grid struct {
	Strategy          string
	EnhancementFactor float64
	BoundaryZoneWidth float64
	Defaults          map[string]Range
}

type Flash struct {
	Parallel     bool
	Workers      int
	ChunkSize    int
	PointTimeout time.Duration
	Traversal    string
}

type Phase struct {
	ProbesX      int
	ProbesY      int
	Workers      int
	ProbeTimeout time.Duration
}

type Engine struct {
	Driver  string
	URL     string
	Secret  string
	Timeout time.Duration
}

type Limits struct {
	MaxPoints     int
	MaxBodyBytes  int64
	HistoryLimit  int
	DatabaseURL   string
	ConnectWindow time.Duration
}

type Config struct {
	Server Server
	Log    Log
	Grid   Grid
	Flash  Flash
	Phase  Phase
	Engine Engine
	Limits Limits
}

// Load reads .env (when present) and the ini file at path. An empty path
// falls back to FLASHGRID_CONFIG, then DefaultPath.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("FLASHGRID_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	var file *ini.File
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		file, err = ini.Load(path)
	} else {
		file = ini.Empty()
	}
	if err != nil {
		return nil, err
	}
	cfg := FromFile(file)
	cfg.applyEnv()
	return cfg, nil
}

// FromFile maps an ini file onto a Config, defaulting every missing key.
func FromFile(file *ini.File) *Config {
	server := file.Section("server")
	lg := file.Section("log")
	grid := file.Section("grid")
	fl := file.Section("flash")
	ph := file.Section("phase")
	eng := file.Section("engine")
	lim := file.Section("limits")

	return &Config{
		Server: Server{
			Addr:            server.Key("addr").MustString(":8080"),
			ShutdownTimeout: server.Key("shutdown_timeout").MustDuration(5 * time.Second),
			RateLimit:       server.Key("rate_limit").MustFloat64(5),
			RateBurst:       server.Key("rate_burst").MustInt(10),
			TokenKey:        server.Key("token_key").String(),
			AllowOrigin:     server.Key("allow_origin").MustString("*"),
		},
		Log: Log{
			Level:  lg.Key("level").MustString("info"),
			Format: lg.Key("format").In("text", []string{"text", "json"}),
		},
		Grid: Grid{
			Strategy:          grid.Key("strategy").MustString("equidistant"),
			EnhancementFactor: grid.Key("enhancement_factor").MustFloat64(5),
			BoundaryZoneWidth: grid.Key("boundary_zone_width").MustFloat64(0),
			Defaults: map[string]Range{
				"pressure":        axisDefault(grid, "pressure", Range{1, 100, 10}),
				"temperature":     axisDefault(grid, "temperature", Range{0, 100, 5}),
				"enthalpy":        axisDefault(grid, "enthalpy", Range{-10000, 10000, 1000}),
				"entropy":         axisDefault(grid, "entropy", Range{-50, 50, 5}),
				"specific_volume": axisDefault(grid, "specific_volume", Range{1e-4, 1e-2, 1e-3}),
				"internal_energy": axisDefault(grid, "internal_energy", Range{-10000, 10000, 1000}),
			},
		},
		Flash: Flash{
			Parallel:     fl.Key("parallel").MustBool(false),
			Workers:      fl.Key("workers").MustInt(4),
			ChunkSize:    fl.Key("chunk_size").MustInt(0),
			PointTimeout: fl.Key("point_timeout").MustDuration(0),
			Traversal:    fl.Key("traversal").In("x_major", []string{"x_major", "y_major"}),
		},
		Phase: Phase{
			ProbesX:      ph.Key("probes_x").MustInt(8),
			ProbesY:      ph.Key("probes_y").MustInt(8),
			Workers:      ph.Key("workers").MustInt(4),
			ProbeTimeout: ph.Key("probe_timeout").MustDuration(2 * time.Second),
		},
		Engine: Engine{
			Driver:  eng.Key("driver").In("wilson", []string{"wilson", "remote"}),
			URL:     eng.Key("url").String(),
			Secret:  eng.Key("secret").String(),
			Timeout: eng.Key("timeout").MustDuration(10 * time.Second),
		},
		Limits: Limits{
			MaxPoints:     lim.Key("max_points").MustInt(250000),
			MaxBodyBytes:  lim.Key("max_body_bytes").MustInt64(1 << 20),
			HistoryLimit:  lim.Key("history_limit").MustInt(50),
			DatabaseURL:   lim.Key("database_url").String(),
			ConnectWindow: lim.Key("connect_window").MustDuration(30 * time.Second),
		},
	}
}

// axisDefault reads "<name>_from", "<name>_to" and "<name>_resolution".
func axisDefault(sec *ini.Section, name string, def Range) Range {
	return Range{
		From:       sec.Key(name + "_from").MustFloat64(def.From),
		To:         sec.Key(name + "_to").MustFloat64(def.To),
		Resolution: sec.Key(name + "_resolution").MustFloat64(def.Resolution),
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TOKEN_KEY"); v != "" {
		c.Server.TokenKey = v
	}
	if v := os.Getenv("FLASHGRID_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Limits.DatabaseURL = v
	}
	if v := os.Getenv("ENGINE_URL"); v != "" {
		c.Engine.URL = strings.TrimRight(v, "/")
		c.Engine.Driver = "remote"
	}
	if v := os.Getenv("ENGINE_SECRET"); v != "" {
		c.Engine.Secret = v
	}
}
