package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/pkg/logger"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := fs.ReadFile(migrations, "migrations/"+entries[0].Name())
	require.NoError(t, err)
	sql := string(data)
	assert.True(t, strings.Contains(sql, "-- +goose Up"))
	assert.True(t, strings.Contains(sql, "-- +goose Down"))
	assert.Contains(t, sql, "category_rule_sets")
	assert.Contains(t, sql, "PRIMARY KEY (issuer, position)")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), Config{}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoDSN)

	_, err = New(context.Background(), Config{DSN: "postgres://%zz"}, logger.Discard())
	assert.ErrorContains(t, err, "parse database config")
}

func TestClose_Nil(t *testing.T) {
	var d *DB
	assert.NotPanics(t, d.Close)
}
