package command_history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"canopus/logger"
	"canopus/ring_buffer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultSize = 100

type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Result    string    `json:"result"`
	Success   bool      `json:"success"`
	Handler   string    `json:"handler,omitempty"`
}

// Store persists entries beyond the lifetime of the process.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Load(ctx context.Context) ([]Entry, error)
	Close() error
}

// Cipher seals persisted entries. security.Manager implements it.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// History is the capped in-memory command log, optionally mirrored to a Store.
type History struct {
	mu      sync.RWMutex
	entries *ring_buffer.Buffer[Entry]
	store   Store
	now     func() time.Time
}

type Config struct {
	Size  int
	Store Store
}

func New(ctx context.Context, cfg *Config) (*History, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}

	h := &History{
		entries: ring_buffer.New[Entry](size),
		store:   cfg.Store,
		now:     time.Now,
	}

	if h.store != nil {
		entries, err := h.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}

		h.entries.Add(entries...)

		logger.Debug("Command history loaded", zap.Int("entries", h.entries.Len()), zap.Int("capacity", h.entries.Cap()))
	}

	return h, nil
}

// Add records a command outcome. The entry is kept in memory even when the
// store fails; the store error is returned.
func (h *History) Add(ctx context.Context, command, result string, success bool, handler string) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		Timestamp: h.now(),
		Command:   command,
		Result:    result,
		Success:   success,
		Handler:   handler,
	}

	h.mu.Lock()
	h.entries.Add(entry)
	h.mu.Unlock()

	if h.store != nil {
		if err := h.store.Append(ctx, entry); err != nil {
			return entry, fmt.Errorf("persist history entry: %w", err)
		}
	}

	return entry, nil
}

// Last returns up to n of the newest entries, oldest first.
func (h *History) Last(n int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.entries.Last(n)
}

func (h *History) Search(query string) []Entry {
	query = strings.ToLower(query)

	h.mu.RLock()
	defer h.mu.RUnlock()

	var found []Entry
	for _, entry := range h.entries.Read() {
		if strings.Contains(strings.ToLower(entry.Command), query) {
			found = append(found, entry)
		}
	}

	return found
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.entries.Len()
}

func (h *History) Close() error {
	if h.store == nil {
		return nil
	}

	return h.store.Close()
}
