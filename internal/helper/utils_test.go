package helper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	require.NoError(t, err)
	b, err := GenerateUUID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	assert.NoError(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "héll...", Truncate("héllo wörld", 4))
	assert.Equal(t, "keep", Truncate("keep", 0))
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint("a.txt", []byte("hello"))
	assert.Len(t, base, 64)
	assert.Equal(t, base, Fingerprint("a.txt", []byte("hello")))
	assert.NotEqual(t, base, Fingerprint("b.txt", []byte("hello")))
	assert.NotEqual(t, base, Fingerprint("a.txt", []byte("hello!")))
	assert.NotEqual(t, Fingerprint("ab", []byte("c")), Fingerprint("a", []byte("bc")))
}

func TestCreateFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x", "y")
	require.NoError(t, CreateFolder(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"chunks": 2})
	assert.Equal(t, "{\n  \"chunks\": 2\n}\n", buf.String())
}
