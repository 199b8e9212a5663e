package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-gallery/internal/similarity"
)

//go:embed matching.yaml
var matchingYAML []byte

type Config struct {
	Gallery    GalleryConfig
	Database   DatabaseConfig
	Matching   MatchingConfig
	Embedding  EmbeddingConfig
	ImageStore ImageStoreConfig
	Log        LogConfig
	Web        WebConfig
	Defaults   DefaultsConfig
}

type GalleryConfig struct {
	Backend string // sqlite (default) or postgres
	Path    string // SQLite database file, defaults to face_gallery.db
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MatchingConfig struct {
	Convention        string  // cosine (default) or euclidean
	Threshold         float64 // acceptance threshold on the convention's scale
	TopK              int     // default number of candidates returned (default 5)
	RequireRegistered bool    // recognition on an empty gallery is an error (default true)
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
}

type ImageStoreConfig struct {
	Backend string // local (default) or minio
	Dir     string // local directory, defaults to gallery_images

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioPrefix    string
	MinioSecure    bool
}

type LogConfig struct {
	Level  string // debug, info (default), warn, error
	Format string // text (default) or json
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins string
}

type DefaultsConfig struct {
	Conventions map[string]ConventionDefaults `yaml:"conventions"`
}

type ConventionDefaults struct {
	Threshold float64 `yaml:"threshold"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString returns the trimmed env var or defaultVal when it is unset or blank.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envBool parses the env var with strconv.ParseBool, falling back to defaultVal.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func Load() *Config {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(matchingYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded matching.yaml: " + err.Error())
	}

	// Aliases resolve to the canonical name so the default threshold lookup finds them.
	convention := strings.ToLower(strings.TrimSpace(envString("MATCH_CONVENTION", "cosine")))
	if c, err := similarity.ParseConvention(convention); err == nil {
		convention = string(c)
	}

	cfg := &Config{
		Gallery: GalleryConfig{
			Backend: strings.ToLower(envString("GALLERY_BACKEND", "sqlite")),
			Path:    envString("FACE_DB", "face_gallery.db"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Matching: MatchingConfig{
			Convention:        convention,
			Threshold:         defaults.Threshold(convention),
			TopK:              envInt("TOP_K", 5),
			RequireRegistered: envBool("REQUIRE_REGISTERED", true),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", "http://localhost:8000"),
		},
		ImageStore: ImageStoreConfig{
			Backend:        strings.ToLower(envString("IMAGE_STORE", "local")),
			Dir:            envString("GALLERY_DIR", "gallery_images"),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    envString("MINIO_BUCKET", "face-gallery"),
			MinioPrefix:    os.Getenv("MINIO_PREFIX"),
			MinioSecure:    envBool("MINIO_SECURE", false),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
			Format: strings.ToLower(envString("LOG_FORMAT", "text")),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
		Defaults: defaults,
	}

	// An unparsable threshold keeps the convention default; Validate reports out-of-range values.
	if s := os.Getenv("MATCH_THRESHOLD"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.Matching.Threshold = v
		}
	}

	return cfg
}

// Threshold returns the default threshold for a convention, or 0 if unknown.
func (d DefaultsConfig) Threshold(convention string) float64 {
	if c, ok := d.Conventions[convention]; ok {
		return c.Threshold
	}
	return 0
}

// Validate checks the backend selections and their required settings.
func (c *Config) Validate() error {
	switch c.Gallery.Backend {
	case "sqlite":
		if c.Gallery.Path == "" {
			return fmt.Errorf("FACE_DB must be set for the sqlite backend")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown GALLERY_BACKEND %q (want sqlite or postgres)", c.Gallery.Backend)
	}

	switch c.ImageStore.Backend {
	case "local":
	case "minio":
		if c.ImageStore.MinioEndpoint == "" || c.ImageStore.MinioBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET must be set for the minio image store")
		}
	default:
		return fmt.Errorf("unknown IMAGE_STORE %q (want local or minio)", c.ImageStore.Backend)
	}

	if c.Matching.TopK < 1 {
		return fmt.Errorf("TOP_K must be positive")
	}
	return c.validateMatching()
}

// validateMatching checks the convention has a default threshold and the threshold fits its scale.
func (c *Config) validateMatching() error {
	convention, err := similarity.ParseConvention(c.Matching.Convention)
	if err != nil {
		return fmt.Errorf("invalid MATCH_CONVENTION: %w", err)
	}
	if _, ok := c.Defaults.Conventions[string(convention)]; !ok {
		return fmt.Errorf("MATCH_CONVENTION %q has no default threshold in matching.yaml", convention)
	}
	engine, err := similarity.NewEngine(convention)
	if err != nil {
		return err
	}
	if !engine.ValidThreshold(c.Matching.Threshold) {
		return fmt.Errorf("MATCH_THRESHOLD %v is out of range for %s", c.Matching.Threshold, convention)
	}
	return nil
}

// Address returns the host:port the web server listens on.
func (w *WebConfig) Address() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}
