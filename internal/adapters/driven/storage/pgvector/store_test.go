package pgvector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

func TestQuoteIdent(t *testing.T) {
	ident, err := quoteIdent("proj_embedding_clip_model")
	require.NoError(t, err)
	assert.Equal(t, `"proj_embedding_clip_model"`, ident)

	for _, bad := range []string{"", "docs; DROP TABLE docs", `docs"`, "docs.other", "docs-1"} {
		_, err := quoteIdent(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "identifier %q", bad)
	}
}

func TestBuildFiltersEqual(t *testing.T) {
	where, args, err := buildFilters([]domain.Filter{
		{Field: "doc_uuid", Op: domain.FilterEqual, Value: "abc"},
		{Field: "lang", Op: domain.FilterEqual, Value: "en"},
	}, 3)
	require.NoError(t, err)

	assert.Equal(t, ` WHERE "doc_uuid" = $3 AND "lang" = $4`, where)
	assert.Equal(t, []any{"abc", "en"}, args)
}

func TestBuildFiltersContainsAny(t *testing.T) {
	where, args, err := buildFilters([]domain.Filter{
		{Field: "uuid", Op: domain.FilterContainsAny, Value: []string{"a", "b"}},
	}, 1)
	require.NoError(t, err)

	assert.Equal(t, ` WHERE "uuid" = ANY($1)`, where)
	require.Len(t, args, 1)
	assert.Equal(t, []string{"a", "b"}, args[0])
}

func TestBuildFiltersContainsAnyFromAnySlice(t *testing.T) {
	_, args, err := buildFilters([]domain.Filter{
		{Field: "uuid", Op: domain.FilterContainsAny, Value: []any{"a", "b"}},
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, args[0])
}

func TestBuildFiltersRejectsBadInput(t *testing.T) {
	_, _, err := buildFilters([]domain.Filter{
		{Field: "uuid; --", Op: domain.FilterEqual, Value: "x"},
	}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = buildFilters([]domain.Filter{
		{Field: "uuid", Op: domain.FilterContainsAny, Value: 42},
	}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = buildFilters([]domain.Filter{
		{Field: "uuid", Op: domain.FilterOp("between"), Value: "x"},
	}, 1)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestBuildFiltersEmpty(t *testing.T) {
	where, args, err := buildFilters(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestStringSliceMixedTypes(t *testing.T) {
	_, err := stringSlice([]any{"a", 7})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestNewStoreRequiresConnString(t *testing.T) {
	_, err := NewStore(t.Context(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
