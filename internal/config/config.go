// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Search  SearchConfig  `mapstructure:"search"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Dedup   DedupConfig   `mapstructure:"dedup"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Server  ServerConfig  `mapstructure:"server"`
	Sources SourcesConfig `mapstructure:"sources"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DataConfig sets where collections live on disk.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// SearchConfig lists keyword sets used for API-driven harvesting.
type SearchConfig struct {
	KeywordsEN     []string `mapstructure:"keywords_en"`
	KeywordsCN     []string `mapstructure:"keywords_cn"`
	CountPerSource int      `mapstructure:"count_per_source"`
}

// FilterConfig rejects images that are too small, too large, or the wrong format.
type FilterConfig struct {
	MinWidth       int      `mapstructure:"min_width"`
	MinHeight      int      `mapstructure:"min_height"`
	AllowedFormats []string `mapstructure:"allowed_formats"`
	MaxFileSize    int64    `mapstructure:"max_file_size"`
}

// FetchConfig governs outbound HTTP behavior.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	LinkTimeoutSec int    `mapstructure:"link_timeout_seconds"`
	DelaySeconds   float64 `mapstructure:"delay_seconds"`
	MaxConcurrent  int    `mapstructure:"max_concurrent"`
}

// DedupConfig controls near-duplicate rejection.
type DedupConfig struct {
	HammingThreshold int `mapstructure:"hamming_threshold"`
}

// CrawlConfig governs website traversal.
type CrawlConfig struct {
	MaxDepth      int  `mapstructure:"max_depth"`
	RespectRobots bool `mapstructure:"respect_robots"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SourcesConfig carries API credentials and the enabled source list.
type SourcesConfig struct {
	Enabled     []string `mapstructure:"enabled"`
	PexelsKey   string   `mapstructure:"pexels_key"`
	UnsplashKey string   `mapstructure:"unsplash_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOXHUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("search.keywords_en", []string{
		"cardboard box",
		"corrugated box",
		"carton",
		"shipping box",
		"moving box",
		"packaging box",
		"brown cardboard box",
		"empty cardboard box",
	})
	v.SetDefault("search.keywords_cn", []string{
		"纸箱", "瓦楞纸箱", "搬家箱", "快递箱", "包装箱", "纸盒", "牛皮纸箱",
	})
	v.SetDefault("search.count_per_source", 20)
	v.SetDefault("filter.min_width", 256)
	v.SetDefault("filter.min_height", 256)
	v.SetDefault("filter.allowed_formats", []string{"jpg", "jpeg", "png", "webp"})
	v.SetDefault("filter.max_file_size", 10*1024*1024)
	v.SetDefault("fetch.user_agent", "BoxHunt/1.0 (Image Scraper for Research Purposes)")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.link_timeout_seconds", 15)
	v.SetDefault("fetch.delay_seconds", 1.0)
	v.SetDefault("fetch.max_concurrent", 3)
	v.SetDefault("dedup.hamming_threshold", 5)
	v.SetDefault("crawl.max_depth", 1)
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("sources.enabled", []string{"pexels", "unsplash"})
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	if c.Filter.MinWidth <= 0 || c.Filter.MinHeight <= 0 {
		return fmt.Errorf("filter.min_width and filter.min_height must be > 0")
	}
	if c.Filter.MaxFileSize <= 0 {
		return fmt.Errorf("filter.max_file_size must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxConcurrent <= 0 {
		return fmt.Errorf("fetch.max_concurrent must be > 0")
	}
	if c.Dedup.HammingThreshold < 0 {
		return fmt.Errorf("dedup.hamming_threshold must be >= 0")
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must be >= 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// Keywords returns the combined keyword list (English + Chinese).
func (c Config) Keywords() []string {
	out := make([]string, 0, len(c.Search.KeywordsEN)+len(c.Search.KeywordsCN))
	out = append(out, c.Search.KeywordsEN...)
	out = append(out, c.Search.KeywordsCN...)
	return out
}

// ImagesDir returns the images directory for a collection.
func (c Config) ImagesDir(collection string) string {
	return filepath.Join(c.Data.Dir, collection, "images")
}

// MetadataFile returns the metadata store path for a collection.
func (c Config) MetadataFile(collection string) string {
	return filepath.Join(c.Data.Dir, collection, "metadata.csv")
}

// FetchTimeout converts the page/image fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// LinkTimeout converts the link-discovery timeout into a duration.
func (c Config) LinkTimeout() time.Duration {
	return time.Duration(c.Fetch.LinkTimeoutSec) * time.Second
}

// RequestDelay converts the politeness delay into a duration.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Fetch.DelaySeconds * float64(time.Second))
}
