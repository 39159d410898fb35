package handler

import (
	"github.com/FACorreiaa/statement-extractor/internal/domain/categorization"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/search"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

// GetRulesRequest selects an issuer's rule set; an empty issuer means the
// base rules. Format "yaml" also fills GetRulesResponse.YAML.
type GetRulesRequest struct {
	Issuer string `json:"issuer,omitempty"`
	Format string `json:"format,omitempty"`
}

type GetRulesResponse struct {
	Issuer   string                 `json:"issuer"`
	Default  string                 `json:"default"`
	Keywords int                    `json:"keywords"`
	Rules    categorization.RuleSet `json:"rules"`
	YAML     string                 `json:"yaml,omitempty"`
}

type ListIssuersRequest struct{}

type ListIssuersResponse struct {
	Issuers []string `json:"issuers"`
}

// PutRulesRequest replaces an issuer's rule set. Exactly one of Rules and
// YAML is set.
type PutRulesRequest struct {
	Issuer string                 `json:"issuer"`
	Rules  categorization.RuleSet `json:"rules,omitempty"`
	YAML   string                 `json:"yaml,omitempty"`
}

type PutRulesResponse struct {
	Issuer     string `json:"issuer"`
	Categories int    `json:"categories"`
}

type DeleteRulesRequest struct {
	Issuer string `json:"issuer"`
}

type DeleteRulesResponse struct {
	Issuer string `json:"issuer"`
}

// SearchRecordsRequest searches by free text, or by exact category when
// Category is set.
type SearchRecordsRequest struct {
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type SearchRecordsResponse struct {
	Hits  []search.Hit `json:"hits"`
	Count int          `json:"count"`
}

type ListExportsRequest struct{}

type ListExportsResponse struct {
	Exports []*storage.FileInfo `json:"exports"`
}
