// Package config holds the process-wide configuration: read once at
// startup, immutable afterwards, and passed explicitly to the systems
// that need it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/dataverse/engine/budget"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Assets AssetsConfig `toml:"assets"`
	Mesh   MeshConfig   `toml:"mesh"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type AssetsConfig struct {
	// Dir is the artifact directory indexed at startup and watched for
	// changes.
	Dir string `toml:"dir"`
	// CatalogPath is the sqlite catalog location.
	CatalogPath string `toml:"catalog_path"`
	// MaxPoints bounds vertex-only point-cloud artifacts.
	MaxPoints int `toml:"max_points"`
}

type MeshConfig struct {
	// DecimationRatio is the fraction of faces to remove (0..1).
	DecimationRatio float64 `toml:"decimation_ratio"`
	// MaxFaces is the absolute face ceiling per decimated mesh.
	MaxFaces int `toml:"max_faces"`
	// MemoryCeiling caps the estimated byte footprint of one decimated
	// mesh.
	MemoryCeiling int64 `toml:"memory_ceiling"`
	// Disable3D turns the 3D pipeline off entirely.
	Disable3D bool `toml:"disable_3d"`
	// Workers is how many asset pipelines may run concurrently.
	Workers int `toml:"workers"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a Config tuned for a 512MB deployment host: the 0.95
// ratio and 15000-face ceiling keep the largest site mesh viewable.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8050,
		},
		Assets: AssetsConfig{
			Dir:         "assets",
			CatalogPath: "assets/catalog.db",
			MaxPoints:   100000,
		},
		Mesh: MeshConfig{
			DecimationRatio: 0.95,
			MaxFaces:        15000,
			MemoryCeiling:   128 << 20,
			Disable3D:       false,
			Workers:         2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path
// (skipped when path is empty or missing), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers the deployment environment's variables over the file
// values. The names match the ones the hosting platform already sets.
func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MESH_DECIMATION_FACTOR"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil {
			c.Mesh.DecimationRatio = ratio
		}
	}
	if v := os.Getenv("MAX_MESH_FACES"); v != "" {
		if faces, err := strconv.Atoi(v); err == nil {
			c.Mesh.MaxFaces = faces
		}
	}
	if v := os.Getenv("MESH_MEMORY_CEILING"); v != "" {
		if ceiling, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Mesh.MemoryCeiling = ceiling
		}
	}
	if v := os.Getenv("DISABLE_3D_VIEW"); v != "" {
		c.Mesh.Disable3D = strings.ToLower(v) == "true"
	}
}

func (c *Config) Validate() error {
	if c.Mesh.DecimationRatio < 0 || c.Mesh.DecimationRatio >= 1 {
		return fmt.Errorf("mesh.decimation_ratio must be in [0, 1), got %v", c.Mesh.DecimationRatio)
	}
	if c.Mesh.MaxFaces < 0 {
		return fmt.Errorf("mesh.max_faces must be >= 0, got %d", c.Mesh.MaxFaces)
	}
	if c.Mesh.MemoryCeiling < 0 {
		return fmt.Errorf("mesh.memory_ceiling must be >= 0, got %d", c.Mesh.MemoryCeiling)
	}
	if c.Mesh.Workers < 1 {
		return fmt.Errorf("mesh.workers must be >= 1, got %d", c.Mesh.Workers)
	}
	return nil
}

// Budget maps the mesh section onto the policy's budget value.
func (c *Config) Budget() budget.Budget {
	return budget.Budget{
		TotalByteCeiling: c.Mesh.MemoryCeiling,
		DecimationRatio:  c.Mesh.DecimationRatio,
		MaxFaces:         c.Mesh.MaxFaces,
		Disable3D:        c.Mesh.Disable3D,
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
