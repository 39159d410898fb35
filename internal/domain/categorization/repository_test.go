package categorization

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_GetRuleSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT r.name, r.keywords`).
		WithArgs("esun").
		WillReturnRows(pgxmock.NewRows([]string{"name", "keywords"}).
			AddRow("餐飲美食", []string{"星巴克", "麥當勞"}).
			AddRow("交通", []string{"高鐵"}))

	repo := NewRepository(mock)
	rs, err := repo.GetRuleSet(context.Background(), "esun")
	require.NoError(t, err)

	assert.Equal(t, RuleSet{
		{Name: "餐飲美食", Keywords: []string{"星巴克", "麥當勞"}},
		{Name: "交通", Keywords: []string{"高鐵"}},
	}, rs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetRuleSet_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT r.name, r.keywords`).
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows([]string{"name", "keywords"}))

	_, err = NewRepository(mock).GetRuleSet(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrRuleSetNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveRuleSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rs := RuleSet{
		{Name: "餐飲美食", Keywords: []string{"星巴克"}},
		{Name: "交通", Keywords: []string{"高鐵", "捷運"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO category_rule_sets`).
		WithArgs("esun").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM category_rules`).
		WithArgs("esun").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO category_rules`).
		WithArgs("esun", 0, "餐飲美食", []string{"星巴克"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO category_rules`).
		WithArgs("esun", 1, "交通", []string{"高鐵", "捷運"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = NewRepository(mock).SaveRuleSet(context.Background(), "esun", rs)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveRuleSet_RollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO category_rule_sets`).
		WithArgs("esun").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = NewRepository(mock).SaveRuleSet(context.Background(), "esun", RuleSet{{Name: "A", Keywords: []string{"a"}}})
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveRuleSet_Invalid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	err = NewRepository(mock).SaveRuleSet(context.Background(), "esun", RuleSet{{Name: ""}})
	assert.ErrorIs(t, err, ErrEmptyCategoryName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListIssuers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT issuer FROM category_rule_sets`).
		WillReturnRows(pgxmock.NewRows([]string{"issuer"}).AddRow("cathay").AddRow("esun"))

	issuers, err := NewRepository(mock).ListIssuers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cathay", "esun"}, issuers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteRuleSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM category_rule_sets`).
		WithArgs("esun").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM category_rule_sets`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewRepository(mock)
	assert.NoError(t, repo.DeleteRuleSet(context.Background(), "esun"))
	assert.ErrorIs(t, repo.DeleteRuleSet(context.Background(), "gone"), ErrRuleSetNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type stubSource struct {
	calls int
	rules map[string]RuleSet
	err   error
}

func (s *stubSource) GetRuleSet(_ context.Context, issuer string) (RuleSet, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	rs, ok := s.rules[issuer]
	if !ok {
		return nil, ErrRuleSetNotFound
	}
	return rs, nil
}

func TestService_ForIssuer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &stubSource{rules: map[string]RuleSet{
		"esun": {{Name: "咖啡", Keywords: []string{"星巴克"}}},
	}}
	svc := NewService(src, DefaultRuleSet(), logger)
	ctx := context.Background()

	t.Run("issuer rules", func(t *testing.T) {
		c := svc.ForIssuer(ctx, "esun")
		assert.Equal(t, "咖啡", c.Categorize("星巴克"))
	})

	t.Run("cached", func(t *testing.T) {
		before := src.calls
		svc.ForIssuer(ctx, "esun")
		assert.Equal(t, before, src.calls)
	})

	t.Run("invalidate reloads", func(t *testing.T) {
		before := src.calls
		svc.Invalidate("esun")
		svc.ForIssuer(ctx, "esun")
		assert.Equal(t, before+1, src.calls)
	})

	t.Run("unknown issuer uses base rules", func(t *testing.T) {
		c := svc.ForIssuer(ctx, "other")
		assert.Same(t, svc.Base(), c)
		assert.Equal(t, "餐飲美食", c.Categorize("星巴克"))
	})

	t.Run("empty issuer uses base rules", func(t *testing.T) {
		assert.Same(t, svc.Base(), svc.ForIssuer(ctx, ""))
	})

	t.Run("source failure fails open", func(t *testing.T) {
		failing := NewService(&stubSource{err: errors.New("db down")}, DefaultRuleSet(), logger)
		assert.Same(t, failing.Base(), failing.ForIssuer(ctx, "esun"))
	})

	t.Run("nil source", func(t *testing.T) {
		plain := NewService(nil, DefaultRuleSet(), nil)
		assert.Same(t, plain.Base(), plain.ForIssuer(ctx, "esun"))
	})
}
