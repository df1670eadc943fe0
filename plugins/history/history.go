package history

import (
	"context"
	"fmt"
	"strings"

	"canopus/command_history"
	"canopus/dispatcher"
)

const (
	Name = "history"

	defaultListSize = 5
)

type Reader interface {
	Last(n int) []command_history.Entry
	Search(query string) []command_history.Entry
}

var searchPrefixes = []string{"search history for ", "search my history for ", "search history "}

type pluginImpl struct {
	reader   Reader
	listSize int
}

type Config struct {
	Reader   Reader
	ListSize int
}

// New returns a handler that recalls earlier commands.
func New(cfg *Config) (dispatcher.Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Reader == nil {
		return nil, fmt.Errorf("reader is nil")
	}

	listSize := cfg.ListSize
	if listSize <= 0 {
		listSize = defaultListSize
	}

	return &pluginImpl{
		reader:   cfg.Reader,
		listSize: listSize,
	}, nil
}

func (p *pluginImpl) Execute(_ context.Context, cmd string) (string, error) {
	for _, prefix := range searchPrefixes {
		if query, found := strings.CutPrefix(cmd, prefix); found {
			return p.search(strings.TrimSpace(query)), nil
		}
	}

	switch {
	case strings.Contains(cmd, "last command"):
		return p.last(), nil
	case cmd == "history", strings.Contains(cmd, "command history"), strings.Contains(cmd, "show history"):
		return p.list(), nil
	default:
		return "", nil
	}
}

func (p *pluginImpl) last() string {
	entries := p.reader.Last(1)
	if len(entries) == 0 {
		return "There are no earlier commands."
	}

	return fmt.Sprintf("Your last command was: %s.", entries[0].Command)
}

func (p *pluginImpl) list() string {
	entries := p.reader.Last(p.listSize)
	if len(entries) == 0 {
		return "There are no earlier commands."
	}

	commands := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		commands = append(commands, entries[i].Command)
	}

	return fmt.Sprintf("Your recent commands were: %s.", strings.Join(commands, "; "))
}

func (p *pluginImpl) search(query string) string {
	if query == "" {
		return "What should I search for?"
	}

	entries := p.reader.Search(query)
	if len(entries) == 0 {
		return fmt.Sprintf("No earlier commands mention %s.", query)
	}

	if len(entries) > p.listSize {
		entries = entries[len(entries)-p.listSize:]
	}

	commands := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		commands = append(commands, entries[i].Command)
	}

	return fmt.Sprintf("Matching commands: %s.", strings.Join(commands, "; "))
}
