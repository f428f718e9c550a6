package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdex/internal/core/domain"
)

func TestAssetWriterStoreDocuments(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "file.txt", []byte("content"))

	store := newFakeAssetStore()
	writer := NewAssetWriter(store, 0)

	doc := textDoc("d1", "content")
	doc.Source.TmpURI = path
	doc.Metadata.Fingerprint = "fp-1"

	require.NoError(t, writer.StoreDocuments(context.Background(), "proj", []*domain.Document{doc}))

	assert.Equal(t, "fake://proj/fp-1", doc.Source.AssetURI)
	assert.Equal(t, "fake", doc.Source.StorageType)
}

func TestAssetWriterReusesExistingObject(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "file.txt", []byte("content"))

	store := newFakeAssetStore()
	writer := NewAssetWriter(store, 0)

	first := textDoc("d1", "content")
	first.Source.TmpURI = path
	first.Metadata.Fingerprint = "fp-1"
	require.NoError(t, writer.StoreDocuments(context.Background(), "proj", []*domain.Document{first}))

	// Same fingerprint again: duplicate is reused, not an error.
	second := textDoc("d2", "content")
	second.Source.TmpURI = path
	second.Metadata.Fingerprint = "fp-1"
	require.NoError(t, writer.StoreDocuments(context.Background(), "proj", []*domain.Document{second}))

	assert.Equal(t, first.Source.AssetURI, second.Source.AssetURI)
	assert.Len(t, store.stored, 1)
}

func TestAssetWriterMissingStagingPath(t *testing.T) {
	writer := NewAssetWriter(newFakeAssetStore(), 0)

	doc := textDoc("d1", "content")

	err := writer.StoreDocuments(context.Background(), "proj", []*domain.Document{doc})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAssetReaderRead(t *testing.T) {
	store := newFakeAssetStore()
	store.payload["fake://proj/fp-1"] = []byte("image bytes")
	reader := NewAssetReader(store)

	data, err := reader.Read(context.Background(), "fake", "fake://proj/fp-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("image bytes"), data)

	_, err = reader.Read(context.Background(), "s3", "s3://x")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestAssetReaderImageBase64Degrades(t *testing.T) {
	store := newFakeAssetStore()
	store.payload["fake://proj/fp-1"] = []byte("image bytes")
	reader := NewAssetReader(store)

	encoded := reader.ReadImageBase64(context.Background(), "fake", "fake://proj/fp-1")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("image bytes")), encoded)

	store.readErr = errors.New("backend down")
	assert.Empty(t, reader.ReadImageBase64(context.Background(), "fake", "fake://proj/fp-1"))
}
