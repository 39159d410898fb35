package cron

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/categorization"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/tables"
	"github.com/FACorreiaa/statement-extractor/internal/domain/insights"
	"github.com/FACorreiaa/statement-extractor/pkg/logger"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

type recordingIndex struct {
	statements map[string]int
}

func (r *recordingIndex) IndexStatement(statement string, records []insights.Classified) error {
	r.statements[statement] = len(records)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, string, *storage.LocalStorage, *recordingIndex) {
	t.Helper()

	inbox := t.TempDir()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rules := categorization.NewService(nil, categorization.DefaultRuleSet(), logger.Discard())
	pipeline := service.NewPipeline(rules, nil, nil, logger.Discard())
	index := &recordingIndex{statements: map[string]int{}}

	s := NewScheduler(InboxConfig{
		Dir:      inbox,
		Schedule: "*/5 * * * *",
		Extract:  service.DefaultConfig(),
	}, pipeline, store, index, logger.Discard())
	return s, inbox, store, index
}

func writeInbox(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestSweep(t *testing.T) {
	s, inbox, store, index := newTestScheduler(t)
	ctx := context.Background()

	writeInbox(t, inbox, "nov.csv", []byte("114/11/10,114/11/12,星巴克 台北店,150,TW\n114/11/11,114/11/12,台北捷運,35,TW\n"))
	writeInbox(t, inbox, "empty.csv", nil)
	writeInbox(t, inbox, "broken.xlsx", []byte("not a workbook"))
	writeInbox(t, inbox, "photo.bin", []byte{0x89, 'P', 'N', 'G', 0, 0, 0})
	writeInbox(t, inbox, ".DS_Store", []byte("x"))

	report, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Processed: 1, NoData: 1, Failed: 1, Skipped: 1}, report)

	assert.FileExists(t, filepath.Join(inbox, ProcessedDir, "nov.csv"))
	assert.FileExists(t, filepath.Join(inbox, ProcessedDir, "empty.csv"))
	assert.FileExists(t, filepath.Join(inbox, FailedDir, "broken.xlsx"))
	assert.FileExists(t, filepath.Join(inbox, "photo.bin"))
	assert.FileExists(t, filepath.Join(inbox, ".DS_Store"))

	files, err := store.List(ctx, storage.BucketExports)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "nov.csv", files[0].Name)
	assert.Equal(t, "nov.csv", files[0].Statement)
	assert.Equal(t, 2, files[0].Records)

	rc, _, err := store.Open(ctx, storage.BucketExports, files[0].ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "星巴克 台北店")
	assert.Contains(t, string(data), "餐飲美食")

	assert.Equal(t, map[string]int{"nov.csv": 2}, index.statements)
}

func TestSweep_Idempotent(t *testing.T) {
	s, inbox, _, _ := newTestScheduler(t)
	writeInbox(t, inbox, "nov.csv", []byte("114/11/10,114/11/12,星巴克 台北店,150,TW\n"))

	first, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	second, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, second)
}

func TestSweep_MissingInbox(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	s.cfg.Dir = filepath.Join(t.TempDir(), "missing")

	_, err := s.Sweep(context.Background())
	assert.Error(t, err)
}

func TestStart(t *testing.T) {
	s, inbox, _, _ := newTestScheduler(t)

	require.NoError(t, s.Start())
	<-s.Stop().Done()
	assert.DirExists(t, filepath.Join(inbox, ProcessedDir))
	assert.DirExists(t, filepath.Join(inbox, FailedDir))

	bad, _, _, _ := newTestScheduler(t)
	bad.cfg.Schedule = "every tuesday"
	assert.Error(t, bad.Start())

	unset, _, _, _ := newTestScheduler(t)
	unset.cfg.Dir = ""
	assert.Error(t, unset.Start())
}

// gatedExtractor holds every call until release is closed.
type gatedExtractor struct {
	next    Extractor
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedExtractor) ProcessDocument(ctx context.Context, src tables.Source, data []byte, password string, cfg service.Config) (*service.Result, error) {
	g.calls.Add(1)
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	return g.next.ProcessDocument(ctx, src, data, password, cfg)
}

func TestSweep_NoOverlap(t *testing.T) {
	s, inbox, store, _ := newTestScheduler(t)
	gate := &gatedExtractor{
		next:    s.extractor,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s.extractor = gate
	writeInbox(t, inbox, "nov.csv", []byte("114/11/10,114/11/12,星巴克 台北店,150,TW\n"))

	s.RunNow()
	<-gate.started

	_, err := s.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)
	s.RunNow()

	close(gate.release)
	<-s.Stop().Done()

	assert.Equal(t, int32(1), gate.calls.Load())
	assert.FileExists(t, filepath.Join(inbox, ProcessedDir, "nov.csv"))

	files, err := store.List(context.Background(), storage.BucketExports)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
