package mods

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/jgivc/modsync/internal/config"
	"github.com/spf13/afero"
)

const tmpPattern = ".modsync-tmp-*"

// Store manages the files inside the mods subdirectory of the target
// directory. All access goes through afero so tests can run against an
// in-memory filesystem.
type Store struct {
	fs  afero.Fs
	dir string
	log *slog.Logger
}

func NewStore(targetDir string, log *slog.Logger) *Store {
	return NewStoreWithFS(afero.NewOsFs(), targetDir, log)
}

func NewStoreWithFS(fs afero.Fs, targetDir string, log *slog.Logger) *Store {
	return &Store{
		fs:  fs,
		dir: filepath.Join(targetDir, config.ModsDirName),
		log: log.With(slog.String("item", "ModStore")),
	}
}

// Dir returns the managed mods directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Init creates the mods directory if it is missing. A failure here is
// fatal to the whole run.
func (s *Store) Init() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cannot create mods directory: %w", err)
	}

	return nil
}

// Exists reports whether the managed file is present. Stat errors other
// than absence count as absent, mirroring a plain existence check.
func (s *Store) Exists(name string) bool {
	ok, err := afero.Exists(s.fs, s.path(name))

	return err == nil && ok
}

func (s *Store) Remove(name string) error {
	return s.fs.Remove(s.path(name))
}

// WriteFile stages the content to a temp file in the mods directory and
// renames it into place, so a crash mid-write never leaves a partial
// file under the managed name.
func (s *Store) WriteFile(name string, data []byte) error {
	tmp, err := afero.TempFile(s.fs, s.dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)

		return fmt.Errorf("cannot write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)

		return fmt.Errorf("cannot write %s: %w", name, err)
	}

	if err := s.fs.Rename(tmpName, s.path(name)); err != nil {
		_ = s.fs.Remove(tmpName)

		return fmt.Errorf("cannot write %s: %w", name, err)
	}

	s.log.Debug("File written", slog.String("name", name), slog.Int("size", len(data)))

	return nil
}

// Digest returns the SHA-256 digest of a managed file.
func (s *Store) Digest(name string) (string, error) {
	return DigestFile(s.fs, s.path(name))
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// DigestFile computes the lowercase hex SHA-256 digest of the full
// content of an arbitrary file. Identical bytes always yield the
// identical digest string.
func DigestFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot read file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot read file for hashing: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
