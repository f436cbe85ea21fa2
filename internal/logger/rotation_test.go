package logger

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("create rotating writer", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		rw, err := NewRotatingWriter(fs, "/logs/toolgate.log", 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		exists, err := afero.Exists(fs, "/logs/toolgate.log")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		rw, err := NewRotatingWriter(fs, "/logs/nested/toolgate.log", 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		exists, err := afero.DirExists(fs, "/logs/nested")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()

	rw, err := NewRotatingWriter(fs, "/logs/toolgate.log", 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	data := []byte("tool execution completed\n")
	n, err := rw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	content, err := afero.ReadFile(fs, "/logs/toolgate.log")
	require.NoError(t, err)
	assert.Equal(t, data, content)
}

func rotatedFiles(t *testing.T, fs afero.Fs, dir, base string) []string {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), base+".") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestRotatingWriterRotation(t *testing.T) {
	t.Run("rotates when size exceeded", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		rw, err := NewRotatingWriter(fs, "/logs/toolgate.log", 1, 0, false)
		require.NoError(t, err)
		defer rw.Close()

		chunk := []byte(strings.Repeat("x", 700))
		_, err = rw.Write(chunk)
		require.NoError(t, err)
		_, err = rw.Write(chunk[:400])
		require.NoError(t, err)

		// 700 + 400 bytes fits in 1MB, no rotation yet
		assert.Empty(t, rotatedFiles(t, fs, "/logs", "toolgate.log"))

		rw.maxSize = 1000
		_, err = rw.Write(chunk)
		require.NoError(t, err)

		assert.Len(t, rotatedFiles(t, fs, "/logs", "toolgate.log"), 1)

		content, err := afero.ReadFile(fs, "/logs/toolgate.log")
		require.NoError(t, err)
		assert.Len(t, content, 700)
	})

	t.Run("compresses rotated files", func(t *testing.T) {
		fs := afero.NewMemMapFs()

		rw, err := NewRotatingWriter(fs, "/logs/toolgate.log", 1, 0, true)
		require.NoError(t, err)
		defer rw.Close()
		rw.maxSize = 10

		_, err = rw.Write([]byte("first line\n"))
		require.NoError(t, err)
		_, err = rw.Write([]byte("second line\n"))
		require.NoError(t, err)

		rotated := rotatedFiles(t, fs, "/logs", "toolgate.log")
		require.Len(t, rotated, 1)
		assert.True(t, strings.HasSuffix(rotated[0], ".gz"))
	})
}

func TestRotatingWriterCleanup(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/logs", 0755))

	old := filepath.Join("/logs", "toolgate.log.20200101-000000.000")
	recent := filepath.Join("/logs", "toolgate.log.20990101-000000.000")
	require.NoError(t, afero.WriteFile(fs, old, []byte("old"), 0644))
	require.NoError(t, afero.WriteFile(fs, recent, []byte("recent"), 0644))
	require.NoError(t, fs.Chtimes(old, time.Now().AddDate(0, 0, -30), time.Now().AddDate(0, 0, -30)))

	rw, err := NewRotatingWriter(fs, "/logs/toolgate.log", 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	oldExists, _ := afero.Exists(fs, old)
	recentExists, _ := afero.Exists(fs, recent)
	assert.False(t, oldExists)
	assert.True(t, recentExists)
}

func TestRotatingWriterClose(t *testing.T) {
	fs := afero.NewMemMapFs()

	rw, err := NewRotatingWriter(fs, "/logs/toolgate.log", 10, 7, false)
	require.NoError(t, err)

	assert.NoError(t, rw.Close())
	assert.NoError(t, rw.Close())
}
