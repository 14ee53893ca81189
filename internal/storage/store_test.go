package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsite/pubsync/internal/publication"
)

func TestLoad_MissingFile(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "publications.json"))
	require.NoError(t, err)
	assert.Empty(t, doc.Publications)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publications.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing store")
	assert.ErrorIs(t, err, ErrUnreadableStore)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "publications.json")
	doc := &publication.Document{Publications: []*publication.YearGroup{
		{Year: 2024, Items: []*publication.Record{
			{Authors: "A", Title: "Q&A <tools>", Venue: "CHI", Link: "https://x.org", PDF: "/papers/q-a-tools.pdf"},
		}},
		{Year: 0, Items: []*publication.Record{{Title: "Undated"}}},
	}}

	require.NoError(t, Save(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "Q&A <tools>"`)
	assert.Contains(t, string(data), `"year": null`)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Publications, 2)
	assert.Equal(t, "/papers/q-a-tools.pdf", loaded.Publications[0].Items[0].PDF)
	assert.Equal(t, 0, loaded.Publications[1].Year)

	again, err := Marshal(loaded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestWriteFileAtomic_DirectoryDestinationFails(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

	err := WriteFileAtomic(target, []byte("x"), 0644)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}
