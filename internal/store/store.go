// Package store manages the on-disk audio layout: synthesis outputs,
// client uploads, and the voice sample library.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/config"
)

// audioExtensions are the sample file types the scanner recognizes.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// Voice is one entry in the sample library.
type Voice struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modified_at"`
}

// Store is a disk-backed file store rooted at three directories.
type Store struct {
	outputsDir string
	uploadsDir string
	samplesDir string
	logger     *slog.Logger
}

// New creates a store over the configured directories.
func New(cfg config.StorageConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		outputsDir: cfg.OutputsDir,
		uploadsDir: cfg.UploadsDir,
		samplesDir: cfg.SamplesDir,
		logger:     logger.With("component", "store"),
	}
}

// EnsureDirs creates the storage directories if they do not exist.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.outputsDir, s.uploadsDir, s.samplesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return nil
}

// OutputsDir returns the synthesis output directory for static serving.
func (s *Store) OutputsDir() string { return s.outputsDir }

// UploadsDir returns the upload directory for static serving.
func (s *Store) UploadsDir() string { return s.uploadsDir }

// OutputPath returns the on-disk path for a named output file.
func (s *Store) OutputPath(name string) string {
	return filepath.Join(s.outputsDir, name)
}

// OutputURL returns the public URL for a task's rendered audio.
func (s *Store) OutputURL(taskID string) string {
	return "/outputs/" + taskID + ".wav"
}

// SaveUpload writes an uploaded file under a uuid-prefixed name so
// concurrent uploads of the same filename never collide. Returns the
// stored path.
func (s *Store) SaveUpload(filename string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.New(), filepath.Base(filename))
	path := filepath.Join(s.uploadsDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	s.logger.Debug("upload saved", "path", path)
	return path, nil
}

// SaveVoice adds a sample to the voice library under its own filename.
func (s *Store) SaveVoice(filename string, r io.Reader) (Voice, error) {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	if !audioExtensions[ext] {
		return Voice{}, fmt.Errorf("unsupported audio extension %q", ext)
	}

	path := filepath.Join(s.samplesDir, base)
	f, err := os.Create(path)
	if err != nil {
		return Voice{}, fmt.Errorf("create sample file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return Voice{}, fmt.Errorf("write sample file: %w", err)
	}

	s.logger.Info("voice sample saved", "filename", base, "size", n)

	return Voice{
		ID:       strings.TrimSuffix(base, filepath.Ext(base)),
		Filename: base,
		Size:     n,
		ModTime:  time.Now(),
	}, nil
}

// ListVoices scans the sample library. The voice id is the filename stem.
func (s *Store) ListVoices() ([]Voice, error) {
	entries, err := os.ReadDir(s.samplesDir)
	if err != nil {
		return nil, fmt.Errorf("read samples dir: %w", err)
	}

	voices := make([]Voice, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !audioExtensions[ext] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		voices = append(voices, Voice{
			ID:       strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Filename: e.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.Slice(voices, func(i, j int) bool { return voices[i].ID < voices[j].ID })
	return voices, nil
}

// ResolveVoice returns the on-disk path for a sample id.
func (s *Store) ResolveVoice(id string) (string, error) {
	voices, err := s.ListVoices()
	if err != nil {
		return "", err
	}
	for _, v := range voices {
		if v.ID == id {
			return filepath.Join(s.samplesDir, v.Filename), nil
		}
	}
	return "", fmt.Errorf("voice sample %q not found", id)
}
