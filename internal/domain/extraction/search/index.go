// Package search keeps a full-text index over extracted statement records so
// past statements can be searched by merchant text or category.
package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/FACorreiaa/statement-extractor/internal/domain/insights"
)

// ErrEmptyQuery is returned for blank search text.
var ErrEmptyQuery = errors.New("empty search query")

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Document is one indexed record.
type Document struct {
	ID          string  `json:"id"`
	Statement   string  `json:"statement"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	AmountRaw   string  `json:"amount_raw"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Shop        string  `json:"shop"`
}

// Hit is a search result with its relevance score.
type Hit struct {
	Document
	Score float64 `json:"score"`
}

// Index is a bleve index of statement records. Descriptions are analyzed with
// the CJK bigram analyzer so Chinese merchant names match on substrings.
type Index struct {
	index bleve.Index
	mu    sync.RWMutex
	path  string
}

// NewIndex opens the index at path, creating it when missing. An empty path
// gives an in-memory index.
func NewIndex(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)

	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(buildMapping())
	default:
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
			}
			idx, err = bleve.New(path, buildMapping())
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &Index{index: idx, path: path}, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = cjk.AnalyzerName

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("statement", exact)
	doc.AddFieldMappingsAt("date", exact)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("amount_raw", exact)
	doc.AddFieldMappingsAt("amount", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("category", exact)
	doc.AddFieldMappingsAt("shop", text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = cjk.AnalyzerName
	return m
}

// DocumentID is the index key of one record of a statement.
func DocumentID(statement string, rowIndex int) string {
	return fmt.Sprintf("%s:%d", statement, rowIndex)
}

// IndexStatement replaces every record of statement with records.
func (i *Index) IndexStatement(statement string, records []insights.Classified) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()
	existing, err := i.statementIDs(statement)
	if err != nil {
		return err
	}
	for _, id := range existing {
		batch.Delete(id)
	}

	for _, r := range records {
		doc := Document{
			ID:          DocumentID(statement, r.RowIndex),
			Statement:   statement,
			Date:        r.Date,
			Description: r.Description,
			AmountRaw:   r.AmountRaw,
			Amount:      r.AmountValue,
			Category:    r.Category,
			Shop:        r.Shop,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to index record %s: %w", doc.ID, err)
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// DeleteStatement removes every record of statement.
func (i *Index) DeleteStatement(statement string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	ids, err := i.statementIDs(statement)
	if err != nil {
		return err
	}
	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete statement %s: %w", statement, err)
	}
	return nil
}

func (i *Index) statementIDs(statement string) ([]string, error) {
	q := bleve.NewTermQuery(statement)
	q.SetField("statement")

	req := bleve.NewSearchRequest(q)
	req.Size = 10000

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement records: %w", err)
	}
	ids := make([]string, len(res.Hits))
	for k, hit := range res.Hits {
		ids[k] = hit.ID
	}
	return ids, nil
}

// Search matches text against descriptions and shop names. Every token of
// text must match.
func (i *Index) Search(text string, limit int) ([]Hit, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}

	desc := bleve.NewMatchQuery(text)
	desc.SetField("description")
	desc.SetOperator(query.MatchQueryOperatorAnd)

	shop := bleve.NewMatchQuery(text)
	shop.SetField("shop")
	shop.SetOperator(query.MatchQueryOperatorAnd)

	return i.run(bleve.NewDisjunctionQuery(desc, shop), limit)
}

// SearchCategory returns records assigned to category.
func (i *Index) SearchCategory(category string, limit int) ([]Hit, error) {
	q := bleve.NewTermQuery(category)
	q.SetField("category")
	return i.run(q, limit)
}

func (i *Index) run(q query.Query, limit int) ([]Hit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return convert(res), nil
}

func convert(res *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc := Document{ID: h.ID}
		doc.Statement, _ = h.Fields["statement"].(string)
		doc.Date, _ = h.Fields["date"].(string)
		doc.Description, _ = h.Fields["description"].(string)
		doc.AmountRaw, _ = h.Fields["amount_raw"].(string)
		doc.Amount, _ = h.Fields["amount"].(float64)
		doc.Category, _ = h.Fields["category"].(string)
		doc.Shop, _ = h.Fields["shop"].(string)
		hits = append(hits, Hit{Document: doc, Score: h.Score})
	}
	return hits
}

// DocumentCount returns the number of indexed records.
func (i *Index) DocumentCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

// Close closes the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.index != nil {
		return i.index.Close()
	}
	return nil
}
