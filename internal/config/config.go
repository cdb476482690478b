package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/roll-call/internal/quality"
	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

// Vision backends.
const (
	BackendRekognition = "rekognition"
	BackendEmbedding   = "embedding"
)

type Config struct {
	AWS        AWSConfig
	Storage    StorageConfig
	Vision     VisionConfig
	Database   DatabaseConfig
	Notify     NotifyConfig
	Log        LogConfig
	Web        WebConfig
	Thresholds ThresholdsConfig
}

type AWSConfig struct {
	Region string // defaults to ap-south-1
	Bucket string // defaults to ict-attendances
}

type StorageConfig struct {
	Dir           string // local directory used instead of S3 when set
	ReportsPrefix string // defaults to reports/
}

type VisionConfig struct {
	Backend      string // rekognition (default) or embedding
	Collection   string // Rekognition face collection, defaults to students
	EmbeddingURL string // defaults to http://localhost:8000
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type NotifyConfig struct {
	TopicARN string // SNS topic for absent alerts; alerts are disabled when empty
}

type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

type WebConfig struct {
	APIKey string // required as a bearer token on /api/v1 when set
}

type ThresholdsConfig struct {
	Quality       quality.Thresholds `yaml:"quality"`
	Similarity    float64            `yaml:"similarity"`
	LowAttendance float64            `yaml:"low_attendance"`
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

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}
	thresholds.Similarity = envFloat("SIMILARITY_THRESHOLD", thresholds.Similarity)
	thresholds.LowAttendance = envFloat("LOW_ATTENDANCE_THRESHOLD", thresholds.LowAttendance)

	reportsPrefix := envString("REPORTS_PREFIX", "reports/")
	if !strings.HasSuffix(reportsPrefix, "/") {
		reportsPrefix += "/"
	}

	return &Config{
		AWS: AWSConfig{
			Region: envString("AWS_REGION", "ap-south-1"),
			Bucket: envString("AWS_BUCKET_NAME", "ict-attendances"),
		},
		Storage: StorageConfig{
			Dir:           os.Getenv("STORAGE_DIR"),
			ReportsPrefix: reportsPrefix,
		},
		Vision: VisionConfig{
			Backend:      strings.ToLower(envString("VISION_BACKEND", BackendRekognition)),
			Collection:   envString("REKOGNITION_COLLECTION", "students"),
			EmbeddingURL: envString("EMBEDDING_URL", "http://localhost:8000"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Notify: NotifyConfig{
			TopicARN: os.Getenv("SNS_TOPIC_ARN"),
		},
		Log: LogConfig{
			Level:       envString("LOG_LEVEL", "info"),
			Development: envBool("LOG_DEVELOPMENT"),
		},
		Web: WebConfig{
			APIKey: os.Getenv("API_KEY"),
		},
		Thresholds: thresholds,
	}
}
