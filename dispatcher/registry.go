package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tier orders handlers: every priority handler is tried before any general one.
type Tier int

const (
	TierPriority Tier = iota
	TierGeneral
)

func (t Tier) String() string {
	switch t {
	case TierPriority:
		return "priority"
	case TierGeneral:
		return "general"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "priority":
		return TierPriority, nil
	case "general", "":
		return TierGeneral, nil
	default:
		return TierGeneral, fmt.Errorf("unknown tier %q", s)
	}
}

// ParsePluginEntry splits a configured "name" or "name:tier" entry. The
// fallback tier applies when the entry names none.
func ParsePluginEntry(entry string, fallback Tier) (string, Tier, error) {
	name, tierName, found := strings.Cut(strings.TrimSpace(entry), ":")

	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fallback, fmt.Errorf("plugin entry %q has no name", entry)
	}

	if !found {
		return name, fallback, nil
	}

	tier, err := ParseTier(tierName)
	if err != nil {
		return "", fallback, fmt.Errorf("plugin %s: %w", name, err)
	}

	return name, tier, nil
}

// Handler executes a command. An empty response means "not handled".
type Handler interface {
	Execute(ctx context.Context, command string) (string, error)
}

type HandlerFunc func(ctx context.Context, command string) (string, error)

func (f HandlerFunc) Execute(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

type PluginDescriptor struct {
	Name    string
	Tier    Tier
	Handler Handler
}

// Registry is built once at startup; its order is part of its contract.
type Registry struct {
	descriptors []PluginDescriptor
	names       map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]bool),
	}
}

func (r *Registry) Register(desc PluginDescriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("plugin name is empty")
	}

	if desc.Handler == nil {
		return fmt.Errorf("plugin %s: handler is nil", desc.Name)
	}

	if desc.Tier != TierPriority && desc.Tier != TierGeneral {
		return fmt.Errorf("plugin %s: invalid tier %s", desc.Name, desc.Tier)
	}

	if r.names[desc.Name] {
		return fmt.Errorf("plugin %s already registered", desc.Name)
	}

	r.names[desc.Name] = true
	r.descriptors = append(r.descriptors, desc)

	return nil
}

// Ordered returns the handlers in dispatch order: priority tier first, then
// general, each in registration order.
func (r *Registry) Ordered() []PluginDescriptor {
	ordered := make([]PluginDescriptor, len(r.descriptors))
	copy(ordered, r.descriptors)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Tier < ordered[j].Tier
	})

	return ordered
}
