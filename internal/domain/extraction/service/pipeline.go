// Package service runs the statement extraction pipeline: raw rows become
// canonical records, which are filtered, classified and aggregated.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-extractor/internal/domain/categorization"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/normalizer"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/sniffer"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/tables"
	"github.com/FACorreiaa/statement-extractor/internal/domain/insights"
	"github.com/FACorreiaa/statement-extractor/pkg/metrics"
)

// ErrDocumentAccess is returned when a document cannot be opened or
// decrypted. Nothing from such a document is processed.
var ErrDocumentAccess = tables.ErrDocumentAccess

var tracer = otel.Tracer("github.com/FACorreiaa/statement-extractor/internal/domain/extraction/service")

// CategorizerProvider resolves the categorizer for an issuer.
// *categorization.Service implements it.
type CategorizerProvider interface {
	ForIssuer(ctx context.Context, issuer string) *categorization.Categorizer
}

// Stats counts what happened to the rows of one document.
type Stats struct {
	Rows      int `json:"rows"`
	Matched   int `json:"matched"`
	Split     int `json:"split"`
	Columns   int `json:"columns"`
	Unmatched int `json:"unmatched"`
	Defaulted int `json:"defaulted"`
	Dropped   int `json:"dropped"`
	// DroppedBy breaks Dropped down by filter reason.
	DroppedBy map[parser.DropReason]int `json:"dropped_by,omitempty"`
	Kept      int                       `json:"kept"`
}

// Result is the pipeline output for one document.
type Result struct {
	Records    []insights.Classified         `json:"records"`
	ByCategory map[string]float64            `json:"by_category,omitempty"`
	ByShop     map[string]insights.ShopTotal `json:"by_shop"`
	Total      float64                       `json:"total"`
	Summary    *insights.Summary             `json:"summary"`
	Stats      Stats                         `json:"stats"`
	// Roles is the column assignment used in column mode.
	Roles *parser.ColumnRoles `json:"roles,omitempty"`
	// NoData is set when the document contained no table rows.
	NoData bool `json:"no_data"`
}

// Pipeline wires the extraction stages together. It holds no per-document
// state and is safe for concurrent use.
type Pipeline struct {
	categorizers CategorizerProvider
	compactor    *normalizer.Compactor
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewPipeline creates a pipeline. compactor and m may be nil.
func NewPipeline(categorizers CategorizerProvider, compactor *normalizer.Compactor, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if compactor == nil {
		compactor = normalizer.NewCompactor(normalizer.DefaultCompactorConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		categorizers: categorizers,
		compactor:    compactor,
		metrics:      m,
		logger:       logger,
	}
}

// ProcessDocument extracts rows from data with src and runs the pipeline.
// A document that cannot be opened fails with ErrDocumentAccess.
func (p *Pipeline) ProcessDocument(ctx context.Context, src tables.Source, data []byte, password string, cfg Config) (*Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "extract.document", trace.WithAttributes(
		attribute.String("source", src.Name()),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rows, err := src.Rows(ctx, data, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "table extraction failed")
		outcome := metrics.OutcomeError
		if errors.Is(err, ErrDocumentAccess) {
			outcome = metrics.OutcomeAccessError
		}
		p.metrics.ObserveDocument(outcome, time.Since(start))
		p.logger.Warn("failed to read document",
			slog.String("source", src.Name()),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("read %s document: %w", src.Name(), err)
	}

	res, err := p.Process(ctx, rows, cfg)
	if err != nil {
		p.metrics.ObserveDocument(metrics.OutcomeError, time.Since(start))
		return nil, err
	}

	outcome := metrics.OutcomeOK
	if res.NoData {
		outcome = metrics.OutcomeNoData
	}
	p.metrics.ObserveDocument(outcome, time.Since(start))
	return res, nil
}

// Process runs the pipeline over rows that were already extracted.
func (p *Pipeline) Process(ctx context.Context, rows []parser.RawRow, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "extract.rows", trace.WithAttributes(
		attribute.String("mode", string(cfg.Mode)),
		attribute.Int("rows", len(rows)),
		attribute.Bool("lossless", cfg.Lossless),
	))
	defer span.End()

	res := &Result{Stats: Stats{Rows: len(rows)}}
	p.metrics.AddRows(len(rows))

	if len(rows) == 0 {
		res.NoData = true
		res.Records = []insights.Classified{}
		res.ByShop = map[string]insights.ShopTotal{}
		res.Summary = insights.Summarize(nil, cfg.Currency, cfg.TopN)
		p.logger.Info("no table data in document")
		return res, nil
	}

	var (
		records []parser.Record
		err     error
	)
	switch cfg.Mode {
	case ModeColumns:
		records, err = p.extractColumns(rows, &cfg, res)
	default:
		records = p.extractPattern(rows, cfg, res)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, err
	}

	for _, r := range records {
		if r.Defaulted {
			res.Stats.Defaulted++
		}
	}
	p.metrics.AddDefaulted(res.Stats.Defaulted)

	if !cfg.Lossless {
		records = p.filter(records, cfg, res)
	}
	res.Stats.Kept = len(records)

	res.Records = p.classify(ctx, records, cfg)
	if cfg.Classify {
		res.ByCategory = insights.SumByCategory(res.Records)
	}
	res.ByShop = insights.SumAndCountByShop(res.Records)
	res.Total = insights.Total(res.Records)
	res.Summary = insights.Summarize(res.Records, cfg.Currency, cfg.TopN)

	span.SetAttributes(attribute.Int("records", len(res.Records)))
	p.logger.Info("statement extracted",
		slog.String("mode", string(cfg.Mode)),
		slog.Int("rows", res.Stats.Rows),
		slog.Int("matched", res.Stats.Matched),
		slog.Int("split", res.Stats.Split),
		slog.Int("unmatched", res.Stats.Unmatched),
		slog.Int("defaulted", res.Stats.Defaulted),
		slog.Int("dropped", res.Stats.Dropped),
		slog.Int("kept", res.Stats.Kept),
	)
	return res, nil
}

// extractPattern matches every row. Unmatched rows are retried with the row
// splitter when enabled, cell boundaries counting as column gaps.
func (p *Pipeline) extractPattern(rows []parser.RawRow, cfg Config, res *Result) []parser.Record {
	records := make([]parser.Record, 0, len(rows))
	for i, row := range rows {
		if rec, ok := parser.Match(row); ok {
			rec.RowIndex = i
			records = append(records, rec)
			res.Stats.Matched++
			continue
		}

		if cfg.SplitFallback {
			if rec, ok := parser.SplitRecord(parser.Split(gapJoin(row)), i); ok {
				records = append(records, rec)
				res.Stats.Split++
				continue
			}
		}

		res.Stats.Unmatched++
		p.logger.Debug("row produced no record",
			slog.Int("row", i),
			slog.String("text", row.Joined()),
		)
	}

	p.metrics.AddRecords(string(parser.SourcePattern), res.Stats.Matched)
	p.metrics.AddRecords(string(parser.SourceSplit), res.Stats.Split)
	p.metrics.AddUnmatched(res.Stats.Unmatched)
	return records
}

// extractColumns reads records by column role, inferring the roles first
// when asked to. A detected header row also becomes a filter label.
func (p *Pipeline) extractColumns(rows []parser.RawRow, cfg *Config, res *Result) ([]parser.Record, error) {
	roles := cfg.Roles
	if roles == nil {
		suggestion, err := sniffer.SuggestRoles(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		roles = &suggestion.Roles
		if suggestion.HeaderRow >= 0 && roles.Date < len(suggestion.Headers) {
			labels := cfg.HeaderLabels
			if labels == nil {
				labels = parser.DefaultHeaderLabels
			}
			cfg.HeaderLabels = append(append([]string{}, labels...), suggestion.Headers[roles.Date])
		}
		p.logger.Debug("inferred column roles",
			slog.Int("date", roles.Date),
			slog.Int("description", roles.Description),
			slog.Int("amount", roles.Amount),
			slog.Float64("confidence", suggestion.Confidence),
		)
	}

	records, err := parser.Extract(rows, *roles)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	res.Roles = roles
	res.Stats.Columns = len(records)
	p.metrics.AddRecords(string(parser.SourceColumns), len(records))

	if cfg.Strict && !cfg.Lossless {
		// Extract yields one record per row, in row order.
		kept := records[:0]
		for i, rec := range records {
			if parser.Complete(rows[i], *roles) {
				kept = append(kept, rec)
				continue
			}
			p.drop(res, rec, parser.DropIncomplete)
		}
		records = kept
	}
	return records, nil
}

func (p *Pipeline) filter(records []parser.Record, cfg Config, res *Result) []parser.Record {
	if res.Stats.DroppedBy == nil {
		res.Stats.DroppedBy = make(map[parser.DropReason]int)
	}
	return parser.Filter(records, parser.FilterOptions{
		HeaderLabels: cfg.HeaderLabels,
		OnDrop: func(r parser.Record, reason parser.DropReason) {
			p.drop(res, r, reason)
		},
	})
}

func (p *Pipeline) drop(res *Result, r parser.Record, reason parser.DropReason) {
	if res.Stats.DroppedBy == nil {
		res.Stats.DroppedBy = make(map[parser.DropReason]int)
	}
	res.Stats.Dropped++
	res.Stats.DroppedBy[reason]++
	p.metrics.IncFiltered(string(reason))
	p.logger.Debug("record dropped",
		slog.Int("row", r.RowIndex),
		slog.String("reason", string(reason)),
	)
}

// classify derives the shop key for every record and, when enabled, the
// category and an advisory suggestion for uncategorized records.
func (p *Pipeline) classify(ctx context.Context, records []parser.Record, cfg Config) []insights.Classified {
	var categorizer *categorization.Categorizer
	if cfg.Classify && p.categorizers != nil {
		categorizer = p.categorizers.ForIssuer(ctx, cfg.Issuer)
	}

	out := make([]insights.Classified, len(records))
	for i, r := range records {
		c := insights.Classified{Record: r, Shop: p.compactor.Compact(r.Description)}
		if categorizer != nil {
			c.Category = categorizer.Categorize(r.Description)
			if c.Category == categorizer.Default() {
				if s, ok := categorizer.Suggest(r.Description); ok {
					c.Suggested = s.Category
				}
			}
		}
		out[i] = c
	}
	return out
}

// gapJoin joins the present cells with a column gap so the splitter sees
// extractor cell boundaries as field boundaries.
func gapJoin(row parser.RawRow) string {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c.Valid && strings.TrimSpace(c.Text) != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "  ")
}
