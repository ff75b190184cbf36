package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_CreatesMissingBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "archive")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestPutObject_WritesAndReturnsURI(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := s.PutObject(context.Background(), "2024-03-15/001.txt", "text/plain", []byte("pagina um"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "2024-03-15", "001.txt"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "2024-03-15", "001.txt"))
	require.NoError(t, err)
	require.Equal(t, "pagina um", string(data))
}

func TestPutObject_RejectsTraversal(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "../escape.txt", "", []byte("x"))
	require.Error(t, err)
}

func TestPutObject_RequiresPath(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "  ", "", []byte("x"))
	require.Error(t, err)
}
