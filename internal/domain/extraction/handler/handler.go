// Package handler exposes the extraction pipeline over HTTP. Document upload
// and export download are plain HTTP endpoints; rules, search and the export
// listing are connect services.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-extractor/internal/domain/categorization"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/export"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/search"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/tables"
	"github.com/FACorreiaa/statement-extractor/internal/domain/insights"
	"github.com/FACorreiaa/statement-extractor/pkg/logger"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultMaxUpload = 20 << 20
)

// Extractor runs the pipeline over an uploaded document.
type Extractor interface {
	ProcessDocument(ctx context.Context, src tables.Source, data []byte, password string, cfg service.Config) (*service.Result, error)
}

// RuleStore persists per-issuer rule sets. *categorization.Repository implements it.
type RuleStore interface {
	SaveRuleSet(ctx context.Context, issuer string, rs categorization.RuleSet) error
	DeleteRuleSet(ctx context.Context, issuer string) error
	ListIssuers(ctx context.Context) ([]string, error)
}

// Searcher queries indexed records. *search.Index implements it.
type Searcher interface {
	IndexStatement(statement string, records []insights.Classified) error
	Search(text string, limit int) ([]search.Hit, error)
	SearchCategory(category string, limit int) ([]search.Hit, error)
}

// Options configures a Handler.
type Options struct {
	// Defaults is the pipeline configuration form fields override.
	Defaults service.Config
	// Password is tried when a request does not carry one.
	Password       string
	MaxUploadBytes int64
}

// Handler serves the extraction API. Rules, RuleStore, Searcher and Storage
// are optional; their endpoints answer Unavailable (503) when the dependency
// is missing.
type Handler struct {
	extractor Extractor
	rules     *categorization.Service
	store     RuleStore
	index     Searcher
	files     storage.Storage
	opts      Options
	logger    *slog.Logger
}

// New creates the extraction handler.
func New(extractor Extractor, rules *categorization.Service, store RuleStore, index Searcher, files storage.Storage, opts Options, log *slog.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	return &Handler{
		extractor: extractor,
		rules:     rules,
		store:     store,
		index:     index,
		files:     files,
		opts:      opts,
		logger:    log,
	}
}

// Register mounts the plain routes and the connect services on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("POST /v1/extract", h.Extract)
	mux.HandleFunc("GET /v1/exports/{id}", h.DownloadExport)

	mux.Handle(NewRulesServiceHandler(h))
	mux.Handle(NewSearchServiceHandler(h))
	mux.Handle(NewExportServiceHandler(h))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Extract accepts a multipart upload in the "file" field and returns the
// records as JSON, CSV or a workbook depending on the "format" field.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), h.logger)

	if r.ContentLength > h.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	cfg, err := h.configFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	output := r.FormValue("format")
	switch output {
	case "", "json", "csv", "xlsx":
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown output format %q", output))
		return
	}

	src, err := tables.Detect(header.Filename, data)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	password := r.FormValue("password")
	if password == "" {
		password = h.opts.Password
	}

	res, err := h.extractor.ProcessDocument(r.Context(), src, data, password, cfg)
	switch {
	case errors.Is(err, service.ErrDocumentAccess):
		writeError(w, http.StatusUnprocessableEntity, "document could not be opened; check the password")
		return
	case errors.Is(err, service.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error("extraction failed", slog.String("file", header.Filename), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "extraction failed")
		return
	}

	if h.index != nil && !res.NoData {
		if err := h.index.IndexStatement(header.Filename, res.Records); err != nil {
			log.Warn("failed to index statement", slog.String("file", header.Filename), slog.Any("error", err))
		}
	}

	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	switch output {
	case "csv":
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, res.Records, cfg.Classify); err != nil {
			log.Error("csv export failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		writeAttachment(w, contentTypeCSV, base+".csv", buf.Bytes())
	case "xlsx":
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, res.Records); err != nil {
			log.Error("xlsx export failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		writeAttachment(w, contentTypeXLSX, base+".xlsx", buf.Bytes())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// configFromForm overlays the request's form fields on the default config.
func (h *Handler) configFromForm(r *http.Request) (service.Config, error) {
	cfg := h.opts.Defaults
	if cfg.Mode == "" {
		cfg = service.DefaultConfig()
	}

	if v := r.FormValue("mode"); v != "" {
		mode, err := service.ParseMode(v)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}

	flags := []struct {
		field string
		dst   *bool
	}{
		{"lossless", &cfg.Lossless},
		{"classify", &cfg.Classify},
		{"split_fallback", &cfg.SplitFallback},
		{"auto_roles", &cfg.AutoRoles},
		{"strict", &cfg.Strict},
	}
	for _, f := range flags {
		v := r.FormValue(f.field)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%s must be a boolean", f.field)
		}
		*f.dst = b
	}

	if v := r.FormValue("issuer"); v != "" {
		cfg.Issuer = v
	}
	if v := r.FormValue("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.New("top must be an integer")
		}
		cfg.TopN = n
	}

	roles, err := rolesFromForm(r)
	if err != nil {
		return cfg, err
	}
	if roles != nil {
		cfg.Roles = roles
	}
	return cfg, nil
}

// rolesFromForm reads date_col, desc_col and amount_col. They must be given
// together.
func rolesFromForm(r *http.Request) (*parser.ColumnRoles, error) {
	fields := []string{"date_col", "desc_col", "amount_col"}
	values := make([]int, 0, len(fields))
	for _, name := range fields {
		v := r.FormValue(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", name)
		}
		values = append(values, n)
	}

	switch len(values) {
	case 0:
		return nil, nil
	case len(fields):
		return &parser.ColumnRoles{Date: values[0], Description: values[1], Amount: values[2]}, nil
	default:
		return nil, errors.New("date_col, desc_col and amount_col must be given together")
	}
}

func (h *Handler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid export id")
		return
	}

	rc, info, err := h.files.Open(r.Context(), storage.BucketExports, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "export not found")
		return
	case err != nil:
		logger.FromContext(r.Context(), h.logger).Error("failed to open export", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to open export")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("export download interrupted", slog.Any("error", err))
	}
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
