package provenance

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"contextiq/internal/config"
	"contextiq/internal/models"
)

func TestEntries(t *testing.T) {
	long := strings.Repeat("ab\n", 60)
	chunks := []models.Chunk{
		{Position: 0, Text: "first\nchunk"},
		{Position: 1, Text: long},
	}

	entries := Entries("sess-1", "report.pdf", chunks)
	require.Len(t, entries, 2)

	assert.Equal(t, "sess-1", entries[0].SessionID)
	assert.Equal(t, "report.pdf", entries[0].Document)
	assert.Equal(t, "chunk_0", entries[0].ChunkID)
	assert.Equal(t, "first chunk", entries[0].Preview)

	assert.Equal(t, "chunk_1", entries[1].ChunkID)
	assert.Equal(t, 1, entries[1].Position)
	assert.Len(t, []rune(entries[1].Preview), models.PreviewLength)
	assert.NotContains(t, entries[1].Preview, "\n")
	assert.False(t, entries[1].RecordedAt.IsZero())
}

func TestMemoryAppends(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Record(ctx, Entries("s", "a.txt", models.ChunksFromTexts([]string{"x", "y"}))))
	require.NoError(t, m.Record(ctx, Entries("s", "b.txt", models.ChunksFromTexts([]string{"z"}))))

	got := m.List()
	require.Len(t, got, 3)
	assert.Equal(t, "a.txt", got[0].Document)
	assert.Equal(t, "b.txt", got[2].Document)

	got[0].Document = "changed"
	assert.Equal(t, "a.txt", m.List()[0].Document)
	assert.NoError(t, m.Close())
}

func TestNewRecorder(t *testing.T) {
	ctx := context.Background()

	r, err := NewRecorder(ctx, &config.DatabaseConfig{Type: config.ProvenanceNone})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, r)
	assert.NoError(t, r.Record(ctx, []Entry{{ChunkID: "chunk_0"}}))

	r, err = NewRecorder(ctx, &config.DatabaseConfig{Type: config.ProvenanceMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, r)

	_, err = NewRecorder(ctx, &config.DatabaseConfig{Type: "sqlite"})
	assert.Error(t, err)
}

func TestChunkRecordSchema(t *testing.T) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN("postgres://user@localhost:5432/contextiq?sslmode=disable")))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	b, err := db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().AppendQuery(db.Formatter(), nil)
	require.NoError(t, err)
	query := string(b)
	assert.Contains(t, query, `CREATE TABLE IF NOT EXISTS "chunk_provenance"`)
	for _, col := range []string{`"session_id"`, `"document"`, `"chunk_id"`, `"position"`, `"preview"`, `"recorded_at"`} {
		assert.Contains(t, query, col)
	}

	records := toRecords(Entries("s", "doc.md", models.ChunksFromTexts([]string{"hello"})))
	b, err = db.NewInsert().Model(&records).AppendQuery(db.Formatter(), nil)
	require.NoError(t, err)
	insert := string(b)
	assert.Contains(t, insert, `INSERT INTO "chunk_provenance"`)
	assert.Contains(t, insert, `'chunk_0'`)
}

func TestChunkParams(t *testing.T) {
	params := chunkParams(Entries("s", "doc.md", models.ChunksFromTexts([]string{"a", "b"})))
	require.Len(t, params, 2)
	assert.Equal(t, "chunk_1", params[1]["chunk_id"])
	assert.Equal(t, 1, params[1]["position"])
	assert.Equal(t, "b", params[1]["preview"])
}
