package imagestore

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		img.Set(x, 1, color.RGBA{R: 200, G: 30, B: 90, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, img))
	return buf.Bytes()
}

func TestWriteImageReencodesAsPNG(t *testing.T) {
	s := New(t.TempDir())
	src := sample(t, func(b *bytes.Buffer, im image.Image) error { return jpeg.Encode(b, im, nil) })

	rel, err := s.WriteImage(7, src, "front.jpg")
	require.NoError(t, err)
	assert.Equal(t, "7/front.png", rel)

	data, ok, err := s.ReadImage(rel)
	require.NoError(t, err)
	require.True(t, ok)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, cfg.Width)
	assert.Equal(t, 3, cfg.Height)

	entries, err := os.ReadDir(filepath.Join(s.Root(), "7"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteImageRejectsUndecodableBytes(t *testing.T) {
	s := New(t.TempDir())
	prev := sample(t, func(b *bytes.Buffer, im image.Image) error { return png.Encode(b, im) })
	rel, err := s.WriteImage(1, prev, "a.png")
	require.NoError(t, err)

	_, err = s.WriteImage(1, []byte("definitely not an image"), "a.png")
	var we *ImageWriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, int64(1), we.ProjectID)

	// The earlier file is untouched.
	data, ok, err := s.ReadImage(rel)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, prev, data)
}

func TestWriteImageFailsWhenDirectoryCannotBeCreated(t *testing.T) {
	root := t.TempDir()
	// A regular file where the project directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(root, "3"), []byte("x"), 0o644))
	s := New(root)

	src := sample(t, func(b *bytes.Buffer, im image.Image) error { return png.Encode(b, im) })
	_, err := s.WriteImage(3, src, "x.png")
	var we *ImageWriteError
	require.ErrorAs(t, err, &we)
}

func TestEnsureProjectDirectoryIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	a, err := s.EnsureProjectDirectory(5)
	require.NoError(t, err)
	b, err := s.EnsureProjectDirectory(5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	st, err := os.Stat(a)
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	_, err = s.EnsureProjectDirectory(0)
	assert.Error(t, err)
}

func TestReadAndDeleteMissingFile(t *testing.T) {
	s := New(t.TempDir())
	data, ok, err := s.ReadImage("9/nope.png")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)

	require.NoError(t, s.DeleteImage("9/nope.png"))
}

func TestDeleteImage(t *testing.T) {
	s := New(t.TempDir())
	src := sample(t, func(b *bytes.Buffer, im image.Image) error { return png.Encode(b, im) })
	rel, err := s.WriteImage(2, src, "back.png")
	require.NoError(t, err)

	require.NoError(t, s.DeleteImage(rel))
	_, ok, err := s.ReadImage(rel)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteImageFailure(t *testing.T) {
	s := New(t.TempDir())
	dir, err := s.EnsureProjectDirectory(4)
	require.NoError(t, err)
	// A non-empty directory cannot be removed with a plain remove.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stuck.png"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stuck.png", "inner"), []byte("x"), 0o644))

	err = s.DeleteImage("4/stuck.png")
	var de *ImageDeleteError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "4/stuck.png", de.Path)
}

func TestPathsCannotEscapeRoot(t *testing.T) {
	s := New(t.TempDir())
	_, _, err := s.ReadImage("../secret.png")
	assert.ErrorIs(t, err, errBadPath)
	_, _, err = s.ReadImage("/etc/passwd")
	assert.ErrorIs(t, err, errBadPath)
	assert.Error(t, s.DeleteImage("../../x.png"))
}

func TestDerivedFileName(t *testing.T) {
	a := DerivedFileName("My Dress (front).JPG")
	b := DerivedFileName("My Dress (front).JPG")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "my-dress-front-"), a)
	assert.True(t, strings.HasSuffix(a, Ext), a)

	bare := DerivedFileName("")
	assert.Len(t, bare, 36+len(Ext))
}
