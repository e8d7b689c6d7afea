package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"sewing-planner/internal/fsutil"
)

// Ext is the canonical on-disk format.
const Ext = ".png"

type ImageWriteError struct {
	ProjectID int64
	Name      string
	Err       error
}

func (e *ImageWriteError) Error() string {
	return fmt.Sprintf("write image %q for project %d: %v", e.Name, e.ProjectID, e.Err)
}

func (e *ImageWriteError) Unwrap() error { return e.Err }

type ImageDeleteError struct {
	Path string
	Err  error
}

func (e *ImageDeleteError) Error() string {
	return fmt.Sprintf("delete image %q: %v", e.Path, e.Err)
}

func (e *ImageDeleteError) Unwrap() error { return e.Err }

var errBadPath = errors.New("image path escapes the store")

// Store keeps one directory of images per project under root. File paths
// handed out and accepted are relative to root: "<projectID>/<name>.png".
// Nothing is cached.
type Store struct {
	root string
	log  zerolog.Logger
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

func New(root string, opts ...Option) *Store {
	s := &Store{root: filepath.Clean(root), log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Root() string { return s.root }

// EnsureProjectDirectory creates the project's directory if needed and
// returns its absolute path.
func (s *Store) EnsureProjectDirectory(projectID int64) (string, error) {
	if projectID <= 0 {
		return "", fmt.Errorf("invalid project id %d", projectID)
	}
	dir := filepath.Join(s.root, strconv.FormatInt(projectID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteImage decodes data, re-encodes it as PNG, and writes it atomically as
// name inside the project's directory. It returns the stored relative path.
func (s *Store) WriteImage(projectID int64, data []byte, name string) (string, error) {
	fail := func(err error) (string, error) {
		s.log.Warn().Err(err).Int64("project", projectID).Str("name", name).Msg("image write failed")
		return "", &ImageWriteError{ProjectID: projectID, Name: name, Err: err}
	}

	name = filepath.Base(strings.TrimSpace(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fail(errors.New("missing file name"))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fail(fmt.Errorf("decode: %w", err))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fail(fmt.Errorf("encode %s as png: %w", format, err))
	}

	dir, err := s.EnsureProjectDirectory(projectID)
	if err != nil {
		return fail(err)
	}
	file := base + Ext
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, file), buf.Bytes(), 0o644); err != nil {
		return fail(err)
	}
	return strconv.FormatInt(projectID, 10) + "/" + file, nil
}

// ReadImage returns the file's bytes. A missing file is reported as
// ok=false, not as an error.
func (s *Store) ReadImage(filePath string) (data []byte, ok bool, err error) {
	abs, err := s.abs(filePath)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// DeleteImage removes the file. An already missing file is success.
func (s *Store) DeleteImage(filePath string) error {
	abs, err := s.abs(filePath)
	if err != nil {
		return &ImageDeleteError{Path: filePath, Err: err}
	}
	err = os.Remove(abs)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	s.log.Warn().Err(err).Str("path", filePath).Msg("image delete failed")
	return &ImageDeleteError{Path: filePath, Err: err}
}

func (s *Store) abs(filePath string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimSpace(filePath)))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", errBadPath, filePath)
	}
	return filepath.Join(s.root, rel), nil
}

// DerivedFileName returns a fresh file name for an imported image. A slug
// of the suggested name is kept as a prefix when it has one.
func DerivedFileName(suggested string) string {
	id := uuid.NewString()
	slug := slugify(strings.TrimSuffix(filepath.Base(suggested), filepath.Ext(suggested)))
	if slug == "" {
		return id + Ext
	}
	return slug + "-" + id + Ext
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 40 {
			break
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
