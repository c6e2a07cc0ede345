package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPut(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads/")
	require.NoError(t, err)

	url, err := l.Put(context.Background(), "avatars/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/a.png", url)

	got, err := os.ReadFile(filepath.Join(dir, "avatars", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))
}

func TestObjectKey(t *testing.T) {
	k := ObjectKey("avatars", "Me.PNG")
	assert.True(t, strings.HasPrefix(k, "avatars/"))
	assert.True(t, strings.HasSuffix(k, ".png"))
	assert.NotEqual(t, k, ObjectKey("avatars", "Me.PNG"))
}

func TestReadAll(t *testing.T) {
	data, err := ReadAll(bytes.NewReader([]byte("12345")), 5)
	require.NoError(t, err)
	assert.Len(t, data, 5)

	_, err = ReadAll(bytes.NewReader([]byte("123456")), 5)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestImageExt(t *testing.T) {
	ext, err := ImageExt("image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	_, err = ImageExt("application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
