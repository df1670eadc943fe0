package command_history

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"canopus/logger"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// FileStore is an append-only JSON-lines log. Once it holds more than
// maxEntries lines it is rewritten with only the newest maxEntries.
type FileStore struct {
	mu         sync.Mutex
	fileSys    afero.Fs
	path       string
	maxEntries int
	cipher     Cipher
	lines      int
}

type FileStoreConfig struct {
	FileSys    afero.Fs
	Path       string
	MaxEntries int
	// Cipher is optional; when set every line is sealed.
	Cipher Cipher
}

func NewFileStore(cfg *FileStoreConfig) (*FileStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.FileSys == nil {
		return nil, fmt.Errorf("fileSys is nil")
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultSize
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := cfg.FileSys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return &FileStore{
		fileSys:    cfg.FileSys,
		path:       cfg.Path,
		maxEntries: maxEntries,
		cipher:     cfg.Cipher,
	}, nil
}

func (s *FileStore) Append(_ context.Context, entry Entry) error {
	line, err := encodeEntry(entry, s.cipher)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.fileSys.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err := file.Write(append(line, '\n')); err != nil {
		file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return err
	}

	s.lines++

	// the log may hold up to twice the cap so rewrites stay rare
	if s.lines > 2*s.maxEntries {
		return s.prune()
	}

	return nil
}

func (s *FileStore) Load(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.readLines()
	if err != nil {
		return nil, err
	}

	s.lines = len(lines)

	entries := make([]Entry, 0, len(lines))

	for i, line := range lines {
		entry, err := decodeEntry(line, s.cipher)
		if err != nil {
			logger.Warn("Skipping unreadable history line",
				zap.String("path", s.path), zap.Int("line", i+1), zap.Error(err))
			continue
		}

		entries = append(entries, entry)
	}

	if len(entries) > s.maxEntries {
		entries = entries[len(entries)-s.maxEntries:]
	}

	return entries, nil
}

func (s *FileStore) Close() error {
	return nil
}

// prune must be called with mu held.
func (s *FileStore) prune() error {
	lines, err := s.readLines()
	if err != nil {
		return err
	}

	if len(lines) > s.maxEntries {
		lines = lines[len(lines)-s.maxEntries:]
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fileSys, tmp, buf.Bytes(), 0o600); err != nil {
		return err
	}

	if err := s.fileSys.Rename(tmp, s.path); err != nil {
		return err
	}

	s.lines = len(lines)

	return nil
}

func (s *FileStore) readLines() ([][]byte, error) {
	file, err := s.fileSys.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	defer file.Close()

	var lines [][]byte

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		lines = append(lines, append([]byte(nil), line...))
	}

	return lines, scanner.Err()
}
