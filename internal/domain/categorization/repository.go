package categorization

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the repository needs. pgxmock pools
// satisfy it too.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository stores rule sets per card issuer in Postgres.
type Repository struct {
	db DBTX
}

// NewRepository creates a new categorization repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// GetRuleSet fetches the rules for an issuer in their stored order.
// It returns ErrRuleSetNotFound when the issuer has no rule set.
func (r *Repository) GetRuleSet(ctx context.Context, issuer string) (RuleSet, error) {
	query := `
		SELECT r.name, r.keywords
		FROM category_rules r
		JOIN category_rule_sets s ON s.issuer = r.issuer
		WHERE r.issuer = $1
		ORDER BY r.position ASC
	`

	rows, err := r.db.Query(ctx, query, issuer)
	if err != nil {
		return nil, fmt.Errorf("query rule set %q: %w", issuer, err)
	}
	defer rows.Close()

	var rs RuleSet
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.Name, &rule.Keywords); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rs = append(rs, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(rs) == 0 {
		return nil, fmt.Errorf("issuer %q: %w", issuer, ErrRuleSetNotFound)
	}
	return rs, nil
}

// SaveRuleSet replaces the issuer's rule set in one transaction.
func (r *Repository) SaveRuleSet(ctx context.Context, issuer string, rs RuleSet) error {
	if err := rs.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO category_rule_sets (issuer)
		VALUES ($1)
		ON CONFLICT (issuer) DO UPDATE SET updated_at = now()
	`, issuer); err != nil {
		return fmt.Errorf("upsert rule set: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM category_rules WHERE issuer = $1`, issuer); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}

	for i, rule := range rs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO category_rules (issuer, position, name, keywords)
			VALUES ($1, $2, $3, $4)
		`, issuer, i, rule.Name, rule.Keywords); err != nil {
			return fmt.Errorf("insert rule %q: %w", rule.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteRuleSet removes an issuer's rule set. Rules cascade.
func (r *Repository) DeleteRuleSet(ctx context.Context, issuer string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM category_rule_sets WHERE issuer = $1`, issuer)
	if err != nil {
		return fmt.Errorf("delete rule set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("issuer %q: %w", issuer, ErrRuleSetNotFound)
	}
	return nil
}

// ListIssuers returns every issuer with a stored rule set.
func (r *Repository) ListIssuers(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT issuer FROM category_rule_sets ORDER BY issuer`)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var issuers []string
	for rows.Next() {
		var issuer string
		if err := rows.Scan(&issuer); err != nil {
			return nil, err
		}
		issuers = append(issuers, issuer)
	}
	return issuers, rows.Err()
}
