package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/kozaktomas/roll-call/internal/attendance"
	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/dashboard"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/database/postgres"
	"github.com/kozaktomas/roll-call/internal/logger"
	"github.com/kozaktomas/roll-call/internal/notify"
	"github.com/kozaktomas/roll-call/internal/quality"
	"github.com/kozaktomas/roll-call/internal/registry"
	"github.com/kozaktomas/roll-call/internal/storage"
	"github.com/kozaktomas/roll-call/internal/vision/embedding"
	"github.com/kozaktomas/roll-call/internal/vision/rekognition"
)

// visionBackend is implemented by both face backends.
type visionBackend interface {
	attendance.FaceDetector
	attendance.FaceComparer
	attendance.FaceIndexer
}

// app holds the wired dependencies shared by all commands.
type app struct {
	cfg      *config.Config
	store    attendance.ObjectStore
	vision   visionBackend
	students database.StudentWriter // nil without DATABASE_URL
	sessions database.SessionWriter // nil without DATABASE_URL
	notifier *notify.Publisher      // nil without SNS_TOPIC_ARN
}

// newApp loads configuration and connects storage, the face backend and,
// when configured, PostgreSQL and SNS.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	var awsCfg aws.Config
	if cfg.Storage.Dir == "" || cfg.Vision.Backend == config.BackendRekognition || cfg.Notify.TopicARN != "" {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
	}

	if cfg.Storage.Dir != "" {
		store, err := storage.NewDirStore(cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage directory: %w", err)
		}
		a.store = store
	} else {
		a.store = storage.NewS3Store(awsCfg, cfg.AWS.Bucket)
	}

	switch cfg.Vision.Backend {
	case config.BackendRekognition:
		a.vision = rekognition.New(awsCfg, cfg.AWS.Bucket)
	case config.BackendEmbedding:
		a.vision = embedding.New(cfg.Vision.EmbeddingURL)
	default:
		return nil, fmt.Errorf("unknown VISION_BACKEND %q", cfg.Vision.Backend)
	}

	if cfg.Database.URL != "" {
		if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		pool := postgres.GetGlobalPool()
		studentRepo := postgres.NewStudentRepository(pool)
		sessionRepo := postgres.NewSessionRepository(pool)
		database.RegisterPostgresBackend(
			func() database.StudentWriter { return studentRepo },
			func() database.SessionWriter { return sessionRepo },
		)

		var err error
		if a.students, err = database.GetStudentWriter(ctx); err != nil {
			return nil, err
		}
		if a.sessions, err = database.GetSessionWriter(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Notify.TopicARN != "" {
		a.notifier = notify.New(awsCfg, cfg.Notify.TopicARN)
	}
	return a, nil
}

// close releases the database pool and flushes the logger.
func (a *app) close() {
	if pool := postgres.GetGlobalPool(); pool != nil {
		if err := pool.Close(); err != nil {
			logger.Warning("failed to close database", logger.LoggerOptions{Key: "error", Data: err})
		}
	}
	logger.Sync()
}

func (a *app) attendanceService() *attendance.Service {
	resolver := attendance.NewResolver(a.vision, a.vision, a.store, quality.NewAssessor(a.cfg.Thresholds.Quality))
	return attendance.NewService(a.store, resolver, a.sessions, a.cfg.Storage.ReportsPrefix)
}

func (a *app) registryService() *registry.Service {
	return registry.NewService(a.store, a.vision, a.students, a.cfg.Vision.Collection)
}

func (a *app) dashboardService() *dashboard.Service {
	return dashboard.NewService(a.store, a.cfg.Storage.ReportsPrefix)
}

// requireSessions fails when session history is not configured.
func (a *app) requireSessions() error {
	if a.sessions == nil {
		return errors.New("DATABASE_URL environment variable is required")
	}
	return nil
}

// readPhotoFiles loads local photos into seekable readers.
func readPhotoFiles(paths []string) ([]io.ReadSeeker, error) {
	photos := make([]io.ReadSeeker, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		photos = append(photos, bytes.NewReader(data))
	}
	return photos, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
