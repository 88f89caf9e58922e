// Package filestore keeps uploaded and encrypted files on the local
// filesystem under non-guessable, date-partitioned names with owner-only
// permissions, and maps stored paths to public URLs and back.
package filestore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind selects the storage root for a file.
type Kind string

const (
	KindDocuments Kind = "documents"
	KindEncrypted Kind = "encrypted"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// StorageError carries the failed operation and path so callers can decide
// whether to abort or log and continue.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("filestore %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Stored describes one persisted file.
type Stored struct {
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
	Filename     string `json:"filename"`
	URL          string `json:"url"`
}

// Store writes files under Root (layout: {kind}/{YYYY}/{MM}/{name}) and
// scoped temporaries under TempRoot. BaseURL is the public prefix the HTTP
// layer serves Root from.
type Store struct {
	Root     string
	TempRoot string
	BaseURL  string
}

func New(root, tempRoot, baseURL string) *Store {
	return &Store{
		Root:     root,
		TempRoot: tempRoot,
		BaseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// SecureFilename derives a collision-resistant name that leaks neither the
// original filename nor any upload ordering: a truncated digest of
// name+time+random joined with the random bytes themselves.
func SecureFilename(originalName, ext string) (string, error) {
	random := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, random); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(originalName))
	fmt.Fprintf(h, "%d", time.Now().UnixNano())
	h.Write(random)
	digest := hex.EncodeToString(h.Sum(nil))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return digest[:16] + "-" + hex.EncodeToString(random) + ext, nil
}

// Save copies sourcePath into the date-partitioned subdirectory for kind,
// creating missing directories with owner-only permissions.
func (s *Store) Save(sourcePath string, kind Kind, originalName string) (Stored, error) {
	now := time.Now()
	relDir := filepath.Join(string(kind), fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()))
	dir := filepath.Join(s.Root, relDir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return Stored{}, &StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	name, err := SecureFilename(originalName, filepath.Ext(originalName))
	if err != nil {
		return Stored{}, &StorageError{Op: "name", Path: originalName, Err: err}
	}
	dst := filepath.Join(dir, name)
	if err := copyFile(sourcePath, dst); err != nil {
		return Stored{}, &StorageError{Op: "copy", Path: dst, Err: err}
	}
	rel := filepath.ToSlash(filepath.Join(relDir, name))
	return Stored{
		Path:         dst,
		RelativePath: rel,
		Filename:     name,
		URL:          s.PublicURL(rel),
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// PublicURL maps a relative stored path to its servable URL.
func (s *Store) PublicURL(relativePath string) string {
	base := filepath.Base(s.Root)
	return s.BaseURL + "/" + base + "/" + strings.TrimLeft(filepath.ToSlash(relativePath), "/")
}

// RelativeFromURL reverses PublicURL. It fails on URLs outside this store.
func (s *Store) RelativeFromURL(url string) (string, error) {
	prefix := s.BaseURL + "/" + filepath.Base(s.Root) + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", &StorageError{Op: "resolve", Path: url, Err: fmt.Errorf("url outside store")}
	}
	return strings.TrimPrefix(url, prefix), nil
}

// LocalPath resolves a user-supplied relative path inside Root, rejecting
// traversal attempts. The temp root stays unreachable even when it lives
// under Root: it holds decrypted plaintext between pipeline steps.
func (s *Store) LocalPath(relativePath string) (string, error) {
	candidate := filepath.Join(s.Root, filepath.FromSlash(relativePath))
	ok, err := IsPathSafe(candidate, s.Root)
	if err != nil {
		return "", &StorageError{Op: "resolve", Path: relativePath, Err: err}
	}
	if !ok {
		return "", &StorageError{Op: "resolve", Path: relativePath, Err: fmt.Errorf("path escapes store root")}
	}
	if s.TempRoot != "" {
		inTemp, err := IsPathSafe(candidate, s.TempRoot)
		if err != nil {
			return "", &StorageError{Op: "resolve", Path: relativePath, Err: err}
		}
		if inTemp {
			return "", &StorageError{Op: "resolve", Path: relativePath, Err: fmt.Errorf("path resolves into the temp root")}
		}
	}
	return candidate, nil
}

// IsPathSafe reports whether candidate resolves to a location inside base.
func IsPathSafe(candidate, base string) (bool, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false, err
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return false, err
	}
	if absCandidate == absBase {
		return true, nil
	}
	return strings.HasPrefix(absCandidate, absBase+string(filepath.Separator)), nil
}

// TempPath returns a fresh scoped path under TempRoot, creating the
// directory if needed.
func (s *Store) TempPath(ext string) (string, error) {
	if err := os.MkdirAll(s.TempRoot, dirPerm); err != nil {
		return "", &StorageError{Op: "mkdir", Path: s.TempRoot, Err: err}
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.TempRoot, uuid.NewString()+ext), nil
}

// CleanupTempFiles removes temp files older than maxAge, prunes directories
// left empty and returns the number of files deleted.
func (s *Store) CleanupTempFiles(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	err := filepath.Walk(s.TempRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return &StorageError{Op: "remove", Path: path, Err: err}
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return deleted, nil
		}
		return deleted, err
	}
	s.pruneEmptyDirs(s.TempRoot)
	return deleted, nil
}

func (s *Store) pruneEmptyDirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(root, e.Name())
		s.pruneEmptyDirs(sub)
		if rest, err := os.ReadDir(sub); err == nil && len(rest) == 0 {
			_ = os.Remove(sub)
		}
	}
}
