package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"canopus/command"
	"canopus/dispatcher"
	"canopus/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTimeoutTicks = 80

	PromptWake            = "How can I help?"
	PromptExit            = "Goodbye."
	ReplyNothingToConfirm = "no command to confirm"
	ReplyConfirmOrRestate = "A command is already waiting for confirmation. Say confirm, or restate it after it expires."
)

var ErrConfirmationTimeout = errors.New("confirmation timed out")

type State int

const (
	Idle State = iota
	Active
	PendingConfirmation
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case PendingConfirmation:
		return "pending_confirmation"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pending is a sensitive command waiting for the confirm keyword.
type Pending struct {
	Command command.Recognized
	// StoredAt is the machine's tick count when the command was stored.
	StoredAt uint64
}

// Outcome is what the caller should do after feeding the machine.
type Outcome struct {
	Reply  string
	Exit   bool
	Result *dispatcher.Result
}

type WakeGate interface {
	Matches(text string) bool
}

type SensitivityChecker interface {
	IsSensitive(text string) bool
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Recognized) dispatcher.Result
}

type Config struct {
	Gate        WakeGate
	Sensitivity SensitivityChecker
	Dispatcher  Dispatcher
	// TimeoutTicks bounds command capture and confirmation, in Tick calls.
	TimeoutTicks int
}

// Machine is driven by a single goroutine; the mutex only protects readers
// such as State from other goroutines.
type Machine struct {
	mu sync.Mutex

	gate        WakeGate
	sensitivity SensitivityChecker
	dispatcher  Dispatcher
	timeout     int

	state      State
	stateTicks int
	totalTicks uint64
	pending    *Pending
	sessionID  string
	now        func() time.Time
}

func New(cfg *Config) (*Machine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Gate == nil {
		return nil, fmt.Errorf("gate is nil")
	}

	if cfg.Sensitivity == nil {
		return nil, fmt.Errorf("sensitivity is nil")
	}

	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is nil")
	}

	timeout := cfg.TimeoutTicks
	if timeout <= 0 {
		timeout = DefaultTimeoutTicks
	}

	return &Machine{
		gate:        cfg.Gate,
		sensitivity: cfg.Sensitivity,
		dispatcher:  cfg.Dispatcher,
		timeout:     timeout,
		now:         time.Now,
	}, nil
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Pending returns a copy of the stored command, if any.
func (m *Machine) Pending() (Pending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return Pending{}, false
	}

	return *m.pending, true
}

// HandleText feeds one transcription into the machine.
func (m *Machine) HandleText(ctx context.Context, text string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := command.Normalize(text)
	if normalized == "" {
		return Outcome{}
	}

	if command.IsExit(normalized) {
		logger.Info("Exit keyword received", zap.String("state", m.state.String()))

		return Outcome{Reply: PromptExit, Exit: true}
	}

	if command.IsConfirm(normalized) && m.pending == nil {
		if m.state != Idle {
			m.enter(Idle)
		}

		return Outcome{Reply: ReplyNothingToConfirm}
	}

	switch m.state {
	case Idle:
		return m.handleIdle(normalized)
	case Active:
		return m.handleActive(ctx, normalized)
	case PendingConfirmation:
		return m.handlePending(ctx, normalized)
	default:
		return Outcome{}
	}
}

func (m *Machine) handleIdle(text string) Outcome {
	if !m.gate.Matches(text) {
		logger.Debug("Ignoring text without wake word", zap.String("text", text))

		return Outcome{}
	}

	m.sessionID = uuid.NewString()
	m.enter(Active)

	logger.Info("Wake word detected", zap.String("session", m.sessionID))

	return Outcome{Reply: PromptWake}
}

func (m *Machine) handleActive(ctx context.Context, text string) Outcome {
	cmd := command.New(text, m.now(), m.sensitivity.IsSensitive(text))

	if cmd.Sensitive {
		m.pending = &Pending{Command: cmd, StoredAt: m.totalTicks}
		m.enter(PendingConfirmation)

		logger.Info("Sensitive command awaiting confirmation",
			zap.String("session", m.sessionID),
			zap.String("command", cmd.Text))

		return Outcome{Reply: confirmationPrompt(cmd.Text)}
	}

	return m.dispatch(ctx, cmd)
}

func (m *Machine) handlePending(ctx context.Context, text string) Outcome {
	if command.IsConfirm(text) {
		cmd := m.pending.Command
		cmd.Confirmed = true
		m.pending = nil

		return m.dispatch(ctx, cmd)
	}

	if m.sensitivity.IsSensitive(text) {
		logger.Info("Rejected second sensitive command while one is pending",
			zap.String("session", m.sessionID),
			zap.String("pending", m.pending.Command.Text),
			zap.String("command", text))

		return Outcome{Reply: ReplyConfirmOrRestate}
	}

	logger.Debug("Waiting for confirmation", zap.String("text", text))

	return Outcome{}
}

func (m *Machine) dispatch(ctx context.Context, cmd command.Recognized) Outcome {
	result := m.dispatcher.Dispatch(ctx, cmd)
	m.enter(Idle)

	return Outcome{Reply: result.Message, Result: &result}
}

// Tick advances the capture timeout. Reaching it returns the machine to Idle
// and discards any pending command.
func (m *Machine) Tick() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalTicks++

	if m.state == Idle {
		return Outcome{}
	}

	m.stateTicks++
	if m.stateTicks < m.timeout {
		return Outcome{}
	}

	if m.state == PendingConfirmation {
		logger.Debug("Discarding pending command",
			zap.String("session", m.sessionID),
			zap.String("command", m.pending.Command.Text),
			zap.Error(ErrConfirmationTimeout))
	} else {
		logger.Info("Command capture timed out", zap.String("session", m.sessionID))
	}

	m.enter(Idle)

	return Outcome{}
}

func (m *Machine) enter(state State) {
	if state != PendingConfirmation {
		m.pending = nil
	}

	m.state = state
	m.stateTicks = 0
}

func confirmationPrompt(text string) string {
	return fmt.Sprintf("%q needs confirmation. Say %s to proceed.", text, command.ConfirmKeyword)
}
