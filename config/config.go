// Package config loads photomerge settings from defaults, an optional YAML
// file, PHOTOMERGE_* environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/choiway/photomerge/photo"
)

const (
	Dir        = ".photomerge"
	FileName   = "config.yaml"
	EnvPrefix  = "PHOTOMERGE"
	CatalogDB  = "photomerge.db"
	defaultPfx = "web"
)

var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}

type Config struct {
	Sources       []string      `yaml:"sources"`
	Target        string        `yaml:"target"`
	Extensions    []string      `yaml:"extensions"`
	Workers       int           `yaml:"workers"`
	FilenameFirst bool          `yaml:"filename_first"`
	FlagRandom    bool          `yaml:"flag_random"`
	RandomPrefix  string        `yaml:"random_prefix"`
	DryRun        bool          `yaml:"dryrun"`
	Debug         bool          `yaml:"debug"`
	Catalog       CatalogConfig `yaml:"catalog"`
	S3            S3Config      `yaml:"s3"`
}

type CatalogConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	PostgresURL string `yaml:"postgres_url,omitempty"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
}

// SetDefaults registers defaults and environment lookups on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sources", []string{})
	v.SetDefault("target", "")
	v.SetDefault("extensions", DefaultExtensions)
	v.SetDefault("workers", OptimalWorkers())
	v.SetDefault("filename_first", false)
	v.SetDefault("flag_random", false)
	v.SetDefault("random_prefix", defaultPfx)
	v.SetDefault("dryrun", false)
	v.SetDefault("debug", false)
	v.SetDefault("catalog.enabled", true)
	v.SetDefault("catalog.path", filepath.Join(Dir, CatalogDB))
	v.SetDefault("catalog.postgres_url", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket", "photomerge")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("catalog.postgres_url", EnvPrefix+"_CATALOG_POSTGRES_URL", "DATABASE_URL")
}

// ReadFile loads path, or .photomerge/config.yaml when path is empty. A
// missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(Dir)
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return &photo.OpError{Op: "config.read", Kind: photo.KindInvalidConfig, Path: path, Err: err}
	}

	return nil
}

func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Sources:       v.GetStringSlice("sources"),
		Target:        v.GetString("target"),
		Extensions:    NormalizeExtensions(v.GetStringSlice("extensions")),
		Workers:       v.GetInt("workers"),
		FilenameFirst: v.GetBool("filename_first"),
		FlagRandom:    v.GetBool("flag_random"),
		RandomPrefix:  v.GetString("random_prefix"),
		DryRun:        v.GetBool("dryrun"),
		Debug:         v.GetBool("debug"),
		Catalog: CatalogConfig{
			Enabled:     v.GetBool("catalog.enabled"),
			Path:        v.GetString("catalog.path"),
			PostgresURL: v.GetString("catalog.postgres_url"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("s3.endpoint"),
			AccessKeyID:     v.GetString("s3.access_key_id"),
			SecretAccessKey: v.GetString("s3.secret_access_key"),
			Bucket:          v.GetString("s3.bucket"),
			Region:          v.GetString("s3.region"),
			Prefix:          v.GetString("s3.prefix"),
		},
	}

	if cfg.Workers < 1 {
		cfg.Workers = OptimalWorkers()
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.FlagRandom && strings.TrimSpace(cfg.RandomPrefix) == "" {
		return nil, &photo.OpError{Op: "config.load", Kind: photo.KindInvalidConfig,
			Err: fmt.Errorf("random_prefix must not be empty when flag_random is set")}
	}

	return cfg, nil
}

// NormalizeExtensions lower-cases entries and makes sure each has a leading dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := map[string]bool{}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// OptimalWorkers leaves a quarter of the CPUs free for the copy step.
func OptimalWorkers() int {
	n := (runtime.NumCPU() * 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Default is the configuration written by `photomerge init`.
func Default() Config {
	return Config{
		Sources:      []string{},
		Extensions:   append([]string(nil), DefaultExtensions...),
		Workers:      OptimalWorkers(),
		RandomPrefix: defaultPfx,
		Catalog: CatalogConfig{
			Enabled: true,
			Path:    filepath.Join(Dir, CatalogDB),
		},
		S3: S3Config{
			Bucket: "photomerge",
			Region: "us-east-1",
		},
	}
}

// Write stores cfg as YAML at path. Credentials are never written.
func Write(path string, cfg Config) error {
	cfg.S3.AccessKeyID = ""
	cfg.S3.SecretAccessKey = ""
	cfg.Catalog.PostgresURL = ""

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
