package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/statement-extractor/internal/domain/categorization"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/search"
	"github.com/FACorreiaa/statement-extractor/pkg/interceptors"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

// Fully-qualified service names.
const (
	RulesServiceName  = "statement.v1.RulesService"
	SearchServiceName = "statement.v1.SearchService"
	ExportServiceName = "statement.v1.ExportService"
)

// Procedure paths, in the form connect clients call them.
const (
	GetRulesProcedure      = "/" + RulesServiceName + "/GetRules"
	ListIssuersProcedure   = "/" + RulesServiceName + "/ListIssuers"
	PutRulesProcedure      = "/" + RulesServiceName + "/PutRules"
	DeleteRulesProcedure   = "/" + RulesServiceName + "/DeleteRules"
	SearchRecordsProcedure = "/" + SearchServiceName + "/SearchRecords"
	ListExportsProcedure   = "/" + ExportServiceName + "/ListExports"
)

const maxRuleSetBytes = 1 << 20

// jsonCodec replaces connect's protojson codec so plain Go structs can be
// used as messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal treats an empty body as an empty message.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (h *Handler) handlerOptions(extra ...connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(interceptors.NewLoggingInterceptor(h.logger)),
	}, extra...)
}

// readOnly lets clients call a procedure with GET as well as POST.
var readOnly = connect.WithIdempotency(connect.IdempotencyNoSideEffects)

// NewRulesServiceHandler builds the rules service and returns the path to
// mount it on.
func NewRulesServiceHandler(h *Handler) (string, http.Handler) {
	getRules := connect.NewUnaryHandler(GetRulesProcedure, h.GetRules, h.handlerOptions(readOnly)...)
	listIssuers := connect.NewUnaryHandler(ListIssuersProcedure, h.ListIssuers, h.handlerOptions(readOnly)...)
	putRules := connect.NewUnaryHandler(PutRulesProcedure, h.PutRules,
		h.handlerOptions(connect.WithReadMaxBytes(maxRuleSetBytes))...)
	deleteRules := connect.NewUnaryHandler(DeleteRulesProcedure, h.DeleteRules,
		h.handlerOptions(connect.WithIdempotency(connect.IdempotencyIdempotent))...)

	return "/" + RulesServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetRulesProcedure:
			getRules.ServeHTTP(w, r)
		case ListIssuersProcedure:
			listIssuers.ServeHTTP(w, r)
		case PutRulesProcedure:
			putRules.ServeHTTP(w, r)
		case DeleteRulesProcedure:
			deleteRules.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// NewSearchServiceHandler builds the record search service.
func NewSearchServiceHandler(h *Handler) (string, http.Handler) {
	searchRecords := connect.NewUnaryHandler(SearchRecordsProcedure, h.SearchRecords, h.handlerOptions(readOnly)...)

	return "/" + SearchServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SearchRecordsProcedure:
			searchRecords.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// NewExportServiceHandler builds the stored-export listing service.
func NewExportServiceHandler(h *Handler) (string, http.Handler) {
	listExports := connect.NewUnaryHandler(ListExportsProcedure, h.ListExports, h.handlerOptions(readOnly)...)

	return "/" + ExportServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ListExportsProcedure:
			listExports.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// GetRules returns the rule set used for an issuer.
func (h *Handler) GetRules(ctx context.Context, req *connect.Request[GetRulesRequest]) (*connect.Response[GetRulesResponse], error) {
	if h.rules == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("categorization is not configured"))
	}

	issuer := strings.TrimSpace(req.Msg.Issuer)
	c := h.rules.ForIssuer(ctx, issuer)

	res := &GetRulesResponse{
		Issuer:   issuer,
		Default:  c.Default(),
		Keywords: c.PatternCount(),
		Rules:    c.Rules(),
	}

	switch req.Msg.Format {
	case "", "json":
	case "yaml":
		var b strings.Builder
		if err := categorization.MarshalRuleSetYAML(&b, res.Rules); err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		res.YAML = b.String()
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("format must be json or yaml"))
	}

	return connect.NewResponse(res), nil
}

// ListIssuers lists issuers that have a stored rule set.
func (h *Handler) ListIssuers(ctx context.Context, req *connect.Request[ListIssuersRequest]) (*connect.Response[ListIssuersResponse], error) {
	if h.store == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("rule storage is not configured"))
	}

	issuers, err := h.store.ListIssuers(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListIssuersResponse{Issuers: issuers}), nil
}

// PutRules replaces an issuer's rule set and drops its cached categorizer.
func (h *Handler) PutRules(ctx context.Context, req *connect.Request[PutRulesRequest]) (*connect.Response[PutRulesResponse], error) {
	if h.store == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("rule storage is not configured"))
	}

	issuer := strings.TrimSpace(req.Msg.Issuer)
	if issuer == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("issuer is required"))
	}

	var (
		rs  categorization.RuleSet
		err error
	)
	switch {
	case req.Msg.YAML != "" && len(req.Msg.Rules) > 0:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("set either rules or yaml, not both"))
	case req.Msg.YAML != "":
		rs, err = categorization.ParseRuleSetYAML(strings.NewReader(req.Msg.YAML))
	default:
		rs = req.Msg.Rules
		err = rs.Validate()
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if len(rs) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("rule set is empty"))
	}

	if err := h.store.SaveRuleSet(ctx, issuer, rs); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if h.rules != nil {
		h.rules.Invalidate(issuer)
	}

	h.logger.Info("rule set saved", slog.String("issuer", issuer), slog.Int("categories", len(rs)))
	return connect.NewResponse(&PutRulesResponse{Issuer: issuer, Categories: len(rs)}), nil
}

// DeleteRules removes an issuer's rule set; the issuer falls back to the base rules.
func (h *Handler) DeleteRules(ctx context.Context, req *connect.Request[DeleteRulesRequest]) (*connect.Response[DeleteRulesResponse], error) {
	if h.store == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("rule storage is not configured"))
	}

	issuer := strings.TrimSpace(req.Msg.Issuer)
	if issuer == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("issuer is required"))
	}

	err := h.store.DeleteRuleSet(ctx, issuer)
	switch {
	case errors.Is(err, categorization.ErrRuleSetNotFound):
		return nil, connect.NewError(connect.CodeNotFound, err)
	case err != nil:
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if h.rules != nil {
		h.rules.Invalidate(issuer)
	}
	return connect.NewResponse(&DeleteRulesResponse{Issuer: issuer}), nil
}

// SearchRecords looks up indexed records by text or by category.
func (h *Handler) SearchRecords(ctx context.Context, req *connect.Request[SearchRecordsRequest]) (*connect.Response[SearchRecordsResponse], error) {
	if h.index == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("search is not configured"))
	}
	if req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("limit must not be negative"))
	}

	var (
		hits []search.Hit
		err  error
	)
	if category := strings.TrimSpace(req.Msg.Category); category != "" {
		hits, err = h.index.SearchCategory(category, req.Msg.Limit)
	} else {
		hits, err = h.index.Search(strings.TrimSpace(req.Msg.Query), req.Msg.Limit)
	}
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query or category is required"))
	case err != nil:
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&SearchRecordsResponse{Hits: hits, Count: len(hits)}), nil
}

// ListExports lists stored inbox exports, newest first.
func (h *Handler) ListExports(ctx context.Context, req *connect.Request[ListExportsRequest]) (*connect.Response[ListExportsResponse], error) {
	if h.files == nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("storage is not configured"))
	}

	files, err := h.files.List(ctx, storage.BucketExports)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListExportsResponse{Exports: files}), nil
}
