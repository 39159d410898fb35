// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/export"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/tables"
	"github.com/FACorreiaa/statement-extractor/internal/domain/insights"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

// Subdirectories of the inbox that receive handled documents.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// ErrSweepInProgress is returned by Sweep while another sweep is running.
var ErrSweepInProgress = errors.New("inbox sweep already in progress")

// Extractor runs the pipeline over one document. *service.Pipeline implements it.
type Extractor interface {
	ProcessDocument(ctx context.Context, src tables.Source, data []byte, password string, cfg service.Config) (*service.Result, error)
}

// Indexer makes extracted records searchable. *search.Index implements it.
type Indexer interface {
	IndexStatement(statement string, records []insights.Classified) error
}

// InboxConfig configures the inbox sweep.
type InboxConfig struct {
	Dir string
	// Schedule is a standard 5-field cron spec.
	Schedule string
	Password string
	Extract  service.Config
}

// SweepReport counts the outcome of one sweep.
type SweepReport struct {
	Processed int
	NoData    int
	Failed    int
	Skipped   int
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	cfg       InboxConfig
	extractor Extractor
	store     storage.Storage
	index     Indexer
	logger    *slog.Logger

	// sweeping is held for the whole of a sweep, whoever started it.
	sweeping sync.Mutex
	manual   sync.WaitGroup
}

// NewScheduler creates the inbox scheduler. index may be nil.
func NewScheduler(cfg InboxConfig, extractor Extractor, store storage.Storage, index Indexer, logger *slog.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	// Standard 5-field format; a slow sweep delays the next one instead of overlapping it.
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:      c,
		cfg:       cfg,
		extractor: extractor,
		store:     store,
		index:     index,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if s.cfg.Dir == "" {
		return errors.New("inbox directory is not configured")
	}
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(s.cfg.Dir, sub), 0o755); err != nil {
			return fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	_, err := s.cron.AddFunc(s.cfg.Schedule, s.runSweep)
	if err != nil {
		return fmt.Errorf("invalid inbox schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("inbox", s.cfg.Dir),
		slog.String("schedule", s.cfg.Schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop stops scheduling. The returned context is done once running
// scheduled jobs and sweeps started by RunNow have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	cronDone := s.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.manual.Wait()
		cancel()
	}()
	return ctx
}

// RunNow triggers a sweep in the background. It is a no-op while another
// sweep is running.
func (s *Scheduler) RunNow() {
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		s.runSweep()
	}()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	_, err := s.Sweep(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Info("inbox sweep skipped, previous sweep still running")
	case err != nil:
		s.logger.Error("inbox sweep failed", slog.Any("error", err))
	}
}

// Sweep processes every document in the inbox directory. Each document gets
// a CSV export in storage and is moved to processed/ or, when it cannot be
// read, to failed/. Unsupported files are left in place. Only one sweep
// runs at a time; a concurrent call fails with ErrSweepInProgress.
func (s *Scheduler) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	if !s.sweeping.TryLock() {
		return report, ErrSweepInProgress
	}
	defer s.sweeping.Unlock()

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return report, fmt.Errorf("failed to read inbox: %w", err)
	}

	s.logger.Info("starting inbox sweep", slog.Int("entries", len(entries)))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		outcome, err := s.processFile(ctx, name)
		switch {
		case errors.Is(err, tables.ErrUnsupportedFormat):
			s.logger.Debug("skipping unsupported inbox file", slog.String("file", name))
			report.Skipped++
			continue
		case err != nil:
			s.logger.Warn("failed to process inbox file",
				slog.String("file", name),
				slog.Any("error", err),
			)
			report.Failed++
			s.move(name, FailedDir)
			continue
		}

		if outcome == outcomeNoData {
			report.NoData++
		} else {
			report.Processed++
		}
		s.move(name, ProcessedDir)
	}

	s.logger.Info("inbox sweep completed",
		slog.Int("processed", report.Processed),
		slog.Int("no_data", report.NoData),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
	)
	return report, nil
}

type fileOutcome int

const (
	outcomeExported fileOutcome = iota
	outcomeNoData
)

func (s *Scheduler) processFile(ctx context.Context, name string) (fileOutcome, error) {
	data, err := os.ReadFile(filepath.Join(s.cfg.Dir, name))
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	src, err := tables.Detect(name, data)
	if err != nil {
		return 0, err
	}

	res, err := s.extractor.ProcessDocument(ctx, src, data, s.cfg.Password, s.cfg.Extract)
	if err != nil {
		return 0, err
	}
	if res.NoData {
		s.logger.Info("no data found", slog.String("file", name))
		return outcomeNoData, nil
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, res.Records, s.cfg.Extract.Classify); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	exportName := strings.TrimSuffix(name, filepath.Ext(name)) + ".csv"
	info, err := s.store.Save(ctx, storage.BucketExports, exportName, "text/csv", &buf,
		&storage.FileInfo{Statement: name, Records: len(res.Records)})
	if err != nil {
		return 0, fmt.Errorf("store export: %w", err)
	}

	if s.index != nil {
		if err := s.index.IndexStatement(name, res.Records); err != nil {
			// The export is already stored; search just lags behind.
			s.logger.Warn("failed to index statement", slog.String("file", name), slog.Any("error", err))
		}
	}

	s.logger.Info("statement exported",
		slog.String("file", name),
		slog.String("export_id", info.ID.String()),
		slog.Int("records", len(res.Records)),
		slog.Float64("total", res.Total),
	)
	return outcomeExported, nil
}

func (s *Scheduler) move(name, sub string) {
	from := filepath.Join(s.cfg.Dir, name)
	to := filepath.Join(s.cfg.Dir, sub, name)
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		s.logger.Error("failed to create inbox directory", slog.Any("error", err))
		return
	}
	if err := os.Rename(from, to); err != nil {
		s.logger.Error("failed to move inbox file",
			slog.String("file", name),
			slog.String("to", sub),
			slog.Any("error", err),
		)
	}
}
