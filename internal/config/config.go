package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// Storage backends.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

const defaultCascadePath = "/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml"

type Config struct {
	Storage   StorageConfig
	Detector  DetectorConfig
	Embedding EmbeddingConfig
	Logging   LoggingConfig
	Web       WebConfig
	Models    ModelsConfig
}

type StorageConfig struct {
	Backend      string // s3 (default) or minio
	Region       string // defaults to us-east-1
	Endpoint     string // custom S3 endpoint, required for minio
	AccessKey    string // static credentials, optional for s3
	SecretKey    string
	Secure       bool // TLS for minio endpoints (default true)
	UsePathStyle bool // path-style addressing for S3-compatible endpoints
	TempDir      string
	MaxRetries   int // retries for transient fetch failures (default 0)
}

type DetectorConfig struct {
	CascadePath  string
	ScaleFactor  float64 // defaults to 1.1
	MinNeighbors int     // defaults to 5
	MinSize      int     // smallest face side in pixels, 0 = no limit
}

type EmbeddingConfig struct {
	URL     string // DeepFace API, defaults to http://localhost:5005
	Model   string // defaults to Facenet
	Timeout time.Duration
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

type WebConfig struct {
	Host string
	Port int
}

type ModelsConfig struct {
	Models map[string]ModelSpec `yaml:"models"`
}

type ModelSpec struct {
	Dim int `yaml:"dim"`
}

// envInt reads an environment variable and parses it as an integer.
// Returns the default value if the env var is unset, empty, or not a number.
// Range checks belong to Validate.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

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

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// onLambda reports whether the process runs inside the AWS Lambda runtime.
func onLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	region := os.Getenv("S3_REGION")
	if region == "" {
		region = envString("AWS_REGION", "us-east-1")
	}

	logFormat := "text"
	if onLambda() {
		logFormat = "json"
	}

	return &Config{
		Storage: StorageConfig{
			Backend:      envString("STORAGE_BACKEND", BackendS3),
			Region:       region,
			Endpoint:     os.Getenv("S3_ENDPOINT"),
			AccessKey:    os.Getenv("S3_ACCESS_KEY"),
			SecretKey:    os.Getenv("S3_SECRET_KEY"),
			Secure:       envBool("S3_SECURE", true),
			UsePathStyle: envBool("S3_USE_PATH_STYLE", false),
			TempDir:      os.Getenv("FETCH_TEMP_DIR"),
			MaxRetries:   envInt("FETCH_MAX_RETRIES", 0),
		},
		Detector: DetectorConfig{
			CascadePath:  envString("CASCADE_PATH", defaultCascadePath),
			ScaleFactor:  envFloat("DETECT_SCALE_FACTOR", 1.1),
			MinNeighbors: envInt("DETECT_MIN_NEIGHBORS", 5),
			MinSize:      envInt("DETECT_MIN_SIZE", 0),
		},
		Embedding: EmbeddingConfig{
			URL:     os.Getenv("EMBEDDING_URL"),
			Model:   envString("EMBEDDING_MODEL", "Facenet"),
			Timeout: envDuration("EMBEDDING_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", logFormat),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Models: models,
	}
}

// GetModelSpec returns the catalog entry for an embedding model.
func (c *Config) GetModelSpec(name string) (ModelSpec, bool) {
	spec, ok := c.Models.Models[name]
	return spec, ok
}

// Validate reports the first setting that would make the pipeline unusable.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendS3:
	case BackendMinio:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required for the %s backend", BackendMinio)
		}
	default:
		return fmt.Errorf("unknown storage backend %q (must be %s or %s)", c.Storage.Backend, BackendS3, BackendMinio)
	}
	if c.Storage.MaxRetries < 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES must not be negative, got %d", c.Storage.MaxRetries)
	}
	if c.Detector.ScaleFactor <= 1 {
		return fmt.Errorf("DETECT_SCALE_FACTOR must be greater than 1, got %v", c.Detector.ScaleFactor)
	}
	if c.Detector.MinNeighbors < 0 {
		return fmt.Errorf("DETECT_MIN_NEIGHBORS must not be negative, got %d", c.Detector.MinNeighbors)
	}
	if c.Detector.MinSize < 0 {
		return fmt.Errorf("DETECT_MIN_SIZE must not be negative, got %d", c.Detector.MinSize)
	}
	if c.Detector.CascadePath == "" {
		return fmt.Errorf("CASCADE_PATH is required")
	}
	if _, ok := c.GetModelSpec(c.Embedding.Model); !ok {
		return fmt.Errorf("unknown embedding model %q", c.Embedding.Model)
	}
	return nil
}
