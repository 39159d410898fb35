package categorization

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// RuleSource loads a rule set for an issuer. *Repository implements it.
type RuleSource interface {
	GetRuleSet(ctx context.Context, issuer string) (RuleSet, error)
}

// Service hands out categorizers per issuer, falling back to a base rule set.
type Service struct {
	source RuleSource
	base   *Categorizer
	logger *slog.Logger

	// Compiled categorizers by issuer
	cache   map[string]*Categorizer
	cacheMu sync.RWMutex
}

// NewService creates a categorization service. source may be nil, in which
// case every issuer gets the base rule set.
func NewService(source RuleSource, base RuleSet, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source: source,
		base:   NewCategorizer(base),
		logger: logger,
		cache:  make(map[string]*Categorizer),
	}
}

// Base returns the categorizer for the base rule set.
func (s *Service) Base() *Categorizer {
	return s.base
}

// ForIssuer returns the categorizer for an issuer. An empty issuer, a missing
// rule set, or a failing source all yield the base categorizer: rule lookup
// failures never block extraction.
func (s *Service) ForIssuer(ctx context.Context, issuer string) *Categorizer {
	if issuer == "" || s.source == nil {
		return s.base
	}

	s.cacheMu.RLock()
	c, ok := s.cache[issuer]
	s.cacheMu.RUnlock()
	if ok {
		return c
	}

	rs, err := s.source.GetRuleSet(ctx, issuer)
	switch {
	case errors.Is(err, ErrRuleSetNotFound):
		s.logger.DebugContext(ctx, "no rule set for issuer, using base rules", slog.String("issuer", issuer))
		return s.base
	case err != nil:
		s.logger.WarnContext(ctx, "failed to load rule set, using base rules",
			slog.String("issuer", issuer), slog.Any("error", err))
		return s.base
	}

	c = NewCategorizer(rs)

	s.cacheMu.Lock()
	s.cache[issuer] = c
	s.cacheMu.Unlock()

	s.logger.InfoContext(ctx, "loaded issuer rule set",
		slog.String("issuer", issuer),
		slog.Int("categories", len(rs)),
		slog.Int("keywords", c.PatternCount()))
	return c
}

// Invalidate drops a cached issuer so the next call reloads it.
func (s *Service) Invalidate(issuer string) {
	s.cacheMu.Lock()
	delete(s.cache, issuer)
	s.cacheMu.Unlock()
}
