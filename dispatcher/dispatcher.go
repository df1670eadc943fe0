package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"canopus/command"
	"canopus/command_history"
	"canopus/logger"
	"canopus/security"

	"go.uber.org/zap"
)

const (
	MessageRateLimited          = "rate limit exceeded"
	MessageConfirmationRequired = "confirmation required"
	MessageNotRecognized        = "command not recognized"
)

// Result is the outcome of one dispatch. A failed result always has a Message.
type Result struct {
	Success   bool
	Message   string
	HandlerID string
	Err       error
}

type Stats struct {
	Invocations int
	Handled     int
	Errors      int
}

type RateLimiter interface {
	CanExecute() bool
}

type HistoryRecorder interface {
	Add(ctx context.Context, command, result string, success bool, handler string) (command_history.Entry, error)
}

type Dispatcher struct {
	handlers    []PluginDescriptor
	rateLimiter RateLimiter
	history     HistoryRecorder

	mu    sync.Mutex
	stats map[string]*Stats
}

type Config struct {
	Registry    *Registry
	RateLimiter RateLimiter
	// History is optional.
	History HistoryRecorder
}

func New(cfg *Config) (*Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}

	if cfg.RateLimiter == nil {
		return nil, fmt.Errorf("rateLimiter is nil")
	}

	d := &Dispatcher{
		handlers:    cfg.Registry.Ordered(),
		rateLimiter: cfg.RateLimiter,
		history:     cfg.History,
		stats:       make(map[string]*Stats),
	}

	for _, h := range d.handlers {
		d.stats[h.Name] = &Stats{}
	}

	return d, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Recognized) Result {
	result := d.dispatch(ctx, cmd)

	if d.history != nil {
		if _, err := d.history.Add(ctx, cmd.Text, result.Message, result.Success, result.HandlerID); err != nil {
			logger.Warn("Failed to record command history", zap.Error(err))
		}
	}

	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd command.Recognized) Result {
	if !d.rateLimiter.CanExecute() {
		logger.Warn("Command rejected by rate limiter", zap.String("command", cmd.Text))

		return Result{Message: MessageRateLimited, Err: security.ErrRateLimitExceeded}
	}

	if cmd.Sensitive && !cmd.Confirmed {
		return Result{Message: MessageConfirmationRequired, Err: ErrConfirmationRequired}
	}

	var failures []error

	for _, h := range d.handlers {
		if err := ctx.Err(); err != nil {
			return Result{Message: "dispatch cancelled", Err: err}
		}

		response, err := d.invoke(ctx, h, cmd.Text)
		if err != nil {
			failures = append(failures, err)

			logger.Error("Handler failed", zap.String("handler", h.Name), zap.Error(err))
			continue
		}

		if strings.TrimSpace(response) == "" {
			continue
		}

		logger.Info("Command handled",
			zap.String("handler", h.Name),
			zap.String("tier", h.Tier.String()),
			zap.String("command", cmd.Text))

		return Result{Success: true, Message: response, HandlerID: h.Name}
	}

	logger.Info("Command not recognized", zap.String("command", cmd.Text))

	return Result{
		Message: MessageNotRecognized,
		Err:     errors.Join(append([]error{ErrNotRecognized}, failures...)...),
	}
}

// invoke runs a single handler and converts panics into errors.
func (d *Dispatcher) invoke(ctx context.Context, h PluginDescriptor, text string) (response string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerExecutionError{Handler: h.Name, Panic: r}
		}

		d.record(h.Name, response, err)
	}()

	response, err = h.Handler.Execute(ctx, text)
	if err != nil {
		return "", &HandlerExecutionError{Handler: h.Name, Err: err}
	}

	return response, nil
}

func (d *Dispatcher) record(name, response string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats[name]
	s.Invocations++

	switch {
	case err != nil:
		s.Errors++
	case strings.TrimSpace(response) != "":
		s.Handled++
	}
}

// Stats returns a snapshot of per-handler counters.
func (d *Dispatcher) Stats() map[string]Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]Stats, len(d.stats))
	for name, s := range d.stats {
		out[name] = *s
	}

	return out
}
