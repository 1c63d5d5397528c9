package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General     GeneralConfig     `toml:"general"`
	Storage     StorageConfig     `toml:"storage"`
	Cache       CacheConfig       `toml:"cache"`
	ObjectStore ObjectStoreConfig `toml:"objectstore"`
	MergeTool   MergeToolConfig   `toml:"mergetool"`
	Logging     LoggingConfig     `toml:"logging"`
}

type GeneralConfig struct {
	DataDir string `toml:"data_dir"`
}

type StorageConfig struct {
	// DBPath is the SQLite database file holding pipelines and nodes.
	DBPath string `toml:"db_path"`
}

type CacheConfig struct {
	Dir string `toml:"dir"`
}

type ObjectStoreConfig struct {
	Scheme        string `toml:"scheme"`
	ServiceDomain string `toml:"service_domain"`
	Container     string `toml:"container"`
}

type MergeToolConfig struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	WorkDir     string `toml:"work_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".vidpipe")

	return &Config{
		General: GeneralConfig{
			DataDir: dataDir,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(dataDir, "vidpipe.db"),
		},
		Cache: CacheConfig{
			Dir: filepath.Join(dataDir, "cache"),
		},
		ObjectStore: ObjectStoreConfig{
			Scheme:        "https",
			ServiceDomain: "storage.googleapis.com",
			Container:     "vidpipe-assets",
		},
		MergeTool: MergeToolConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			WorkDir:     filepath.Join(dataDir, "work"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	c.General.DataDir, err = expandPath(c.General.DataDir)
	if err != nil {
		return fmt.Errorf("expand general.data_dir: %w", err)
	}

	c.Storage.DBPath, err = expandPath(c.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("expand storage.db_path: %w", err)
	}

	c.Cache.Dir, err = expandPath(c.Cache.Dir)
	if err != nil {
		return fmt.Errorf("expand cache.dir: %w", err)
	}

	c.MergeTool.WorkDir, err = expandPath(c.MergeTool.WorkDir)
	if err != nil {
		return fmt.Errorf("expand mergetool.work_dir: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path cannot be empty")
	}

	if c.ObjectStore.ServiceDomain == "" {
		return fmt.Errorf("objectstore.service_domain cannot be empty")
	}

	if c.ObjectStore.Container == "" {
		return fmt.Errorf("objectstore.container cannot be empty")
	}

	validSchemes := map[string]bool{"http": true, "https": true}
	if !validSchemes[c.ObjectStore.Scheme] {
		return fmt.Errorf("invalid objectstore scheme: %s (valid: http, https)", c.ObjectStore.Scheme)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VIDPIPE_DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv("VIDPIPE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("VIDPIPE_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("VIDPIPE_OBJECT_SCHEME"); v != "" {
		cfg.ObjectStore.Scheme = v
	}
	if v := os.Getenv("VIDPIPE_OBJECT_DOMAIN"); v != "" {
		cfg.ObjectStore.ServiceDomain = v
	}
	if v := os.Getenv("VIDPIPE_OBJECT_CONTAINER"); v != "" {
		cfg.ObjectStore.Container = v
	}
	if v := os.Getenv("VIDPIPE_FFMPEG"); v != "" {
		cfg.MergeTool.FFmpegPath = v
	}
	if v := os.Getenv("VIDPIPE_FFPROBE"); v != "" {
		cfg.MergeTool.FFprobePath = v
	}
	if v := os.Getenv("VIDPIPE_WORK_DIR"); v != "" {
		cfg.MergeTool.WorkDir = v
	}
	if v := os.Getenv("VIDPIPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VIDPIPE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}

func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
