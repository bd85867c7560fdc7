// Package influxsink writes one InfluxDB point per shot. Points are
// timestamped with the shot time and tagged with the session. Only shots
// appended since the previous save of the same session are sent.
package influxsink

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puckstats/shotrecorder/internal/config"
	"github.com/puckstats/shotrecorder/pkg/core"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement is the measurement name of shot points.
const Measurement = "shot"

// Sink writes shot points to InfluxDB, or to a gzipped line protocol backup
// file when the server cannot be reached.
type Sink struct {
	cfg        config.InfluxConfig
	backupPath string
	log        zerolog.Logger

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer

	// shots of session already sent
	session uuid.UUID
	written int
}

// New creates a sink. Nothing is connected until Init.
func New(cfg config.InfluxConfig, backupPath string, log zerolog.Logger) *Sink {
	return &Sink{cfg: cfg, backupPath: backupPath, log: log}
}

// Init connects to InfluxDB, creating the org and bucket if needed. An
// unreachable server switches to the backup file instead of failing.
func (s *Sink) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = influxdb2.NewClientWithOptions(
		s.cfg.URL(),
		s.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		s.log.Warn().Err(err).Str("backupPath", s.backupPath).
			Msg("InfluxDB unreachable, writing shot points to backup file")
		s.client.Close()
		s.client = nil
		return s.openBackup()
	}

	if err := s.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	s.writer = s.client.WriteAPI(s.cfg.Org, s.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			s.log.Error().Err(writeErr).Str("bucket", s.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(s.writer.Errors())

	s.log.Info().Str("url", s.cfg.URL()).Str("bucket", s.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (s *Sink) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := s.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, s.cfg.Org)
	if err != nil {
		s.log.Info().Str("org", s.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, s.cfg.Org)
		if err != nil {
			return fmt.Errorf("error creating organization: %w", err)
		}
	}

	buckets := s.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, s.cfg.Bucket); err != nil {
		s.log.Info().Str("bucket", s.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, s.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 365,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket: %w", err)
		}
	}
	return nil
}

func (s *Sink) openBackup() error {
	if s.backupPath == "" {
		return fmt.Errorf("influxDB unreachable and no backup path configured")
	}
	file, err := os.OpenFile(s.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	s.backupFile = file
	s.backupWriter = gzip.NewWriter(file)
	return nil
}

// Close flushes pending points and releases the client or backup file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		s.writer.Flush()
		s.writer = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	if s.backupWriter != nil {
		if err := s.backupWriter.Close(); err != nil {
			return fmt.Errorf("error closing backup writer: %w", err)
		}
		s.backupWriter = nil
	}
	if s.backupFile != nil {
		err := s.backupFile.Close()
		s.backupFile = nil
		return err
	}
	return nil
}

// SaveSession writes a point for every shot not yet sent for the session.
func (s *Sink) SaveSession(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID != s.session || s.written > len(sess.Shots) {
		s.session = sess.ID
		s.written = 0
	}
	for _, rec := range sess.Shots[s.written:] {
		if err := s.writePoint(ShotPoint(sess, rec)); err != nil {
			return err
		}
		s.written++
	}
	if s.backupWriter != nil {
		if err := s.backupWriter.Flush(); err != nil {
			return fmt.Errorf("error flushing InfluxDB backup file: %w", err)
		}
	}
	return nil
}

// writePoint sends to the server, or to the backup file when offline. Caller holds s.mu.
func (s *Sink) writePoint(point *influxdb2_write.Point) error {
	if s.writer != nil {
		s.writer.WritePoint(point)
		return nil
	}
	if s.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	// the line protocol already ends in a newline
	if _, err := s.backupWriter.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// ShotPoint builds the point for one shot of sess.
func ShotPoint(sess *core.Session, rec core.ShotRecord) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("session", sess.ID.String()).
		AddTag("server", sess.ServerName).
		AddTag("player", rec.Shooter.Name).
		AddTag("team", rec.Shooter.Team.String()).
		AddTag("targetGoal", rec.TargetGoal.String()).
		AddTag("shotType", rec.Type.String()).
		AddField("number", rec.Shooter.Number).
		AddField("speed", rec.ShotSpeed).
		AddField("puckX", rec.PuckPosition.X).
		AddField("puckY", rec.PuckPosition.Y).
		AddField("puckZ", rec.PuckPosition.Z).
		AddField("shooterX", rec.ShooterPosition.X).
		AddField("shooterY", rec.ShooterPosition.Y).
		AddField("shooterZ", rec.ShooterPosition.Z).
		AddField("period", rec.Period).
		AddField("overtime", rec.IsOvertime).
		SetTime(rec.Timestamp)
	if rec.Goalie != nil {
		point.AddTag("goalie", rec.Goalie.Name)
	}
	if hit := rec.GoalieHitPosition; hit != nil {
		point.AddField("goalieHitX", hit.X).
			AddField("goalieHitY", hit.Y).
			AddField("goalieHitZ", hit.Z)
	}
	return point
}
