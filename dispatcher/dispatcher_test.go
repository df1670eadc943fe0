package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"canopus/command"
	"canopus/command_history"
	"canopus/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	response string
	err      error
	panics   bool
	calls    int
	commands []string
}

func (h *countingHandler) Execute(_ context.Context, cmd string) (string, error) {
	h.calls++
	h.commands = append(h.commands, cmd)

	if h.panics {
		panic("boom")
	}

	return h.response, h.err
}

type allowAll struct{}

func (allowAll) CanExecute() bool { return true }

func newDispatcher(t *testing.T, limiter RateLimiter, history HistoryRecorder, descs ...PluginDescriptor) *Dispatcher {
	t.Helper()

	registry := NewRegistry()
	for _, desc := range descs {
		require.NoError(t, registry.Register(desc))
	}

	d, err := New(&Config{Registry: registry, RateLimiter: limiter, History: history})
	require.NoError(t, err)

	return d
}

func plain(text string) command.Recognized {
	return command.New(text, time.Now(), false)
}

func TestDispatch_PriorityTierWins(t *testing.T) {
	general := &countingHandler{response: "general answer"}
	priority := &countingHandler{response: "priority answer"}

	// general registered first on purpose
	d := newDispatcher(t, allowAll{}, nil,
		PluginDescriptor{Name: "b", Tier: TierGeneral, Handler: general},
		PluginDescriptor{Name: "a", Tier: TierPriority, Handler: priority},
	)

	result := d.Dispatch(context.Background(), plain("what time is it"))

	assert.True(t, result.Success)
	assert.Equal(t, "priority answer", result.Message)
	assert.Equal(t, "a", result.HandlerID)
	assert.Equal(t, 1, priority.calls)
	assert.Equal(t, 0, general.calls)
}

func TestDispatch_RegistrationOrderWithinTier(t *testing.T) {
	first := &countingHandler{}
	second := &countingHandler{response: "second"}
	third := &countingHandler{response: "third"}

	d := newDispatcher(t, allowAll{}, nil,
		PluginDescriptor{Name: "first", Tier: TierGeneral, Handler: first},
		PluginDescriptor{Name: "second", Tier: TierGeneral, Handler: second},
		PluginDescriptor{Name: "third", Tier: TierGeneral, Handler: third},
	)

	result := d.Dispatch(context.Background(), plain("hello"))

	assert.Equal(t, "second", result.HandlerID)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, third.calls)
	assert.Equal(t, []string{"hello"}, first.commands)
}

func TestDispatch_FailingHandlersDoNotAbort(t *testing.T) {
	erroring := &countingHandler{err: errors.New("network down")}
	panicking := &countingHandler{panics: true}
	working := &countingHandler{response: "done"}

	d := newDispatcher(t, allowAll{}, nil,
		PluginDescriptor{Name: "erroring", Tier: TierPriority, Handler: erroring},
		PluginDescriptor{Name: "panicking", Tier: TierPriority, Handler: panicking},
		PluginDescriptor{Name: "working", Tier: TierGeneral, Handler: working},
	)

	result := d.Dispatch(context.Background(), plain("do it"))

	assert.True(t, result.Success)
	assert.Equal(t, "working", result.HandlerID)

	stats := d.Stats()
	assert.Equal(t, Stats{Invocations: 1, Errors: 1}, stats["erroring"])
	assert.Equal(t, Stats{Invocations: 1, Errors: 1}, stats["panicking"])
	assert.Equal(t, Stats{Invocations: 1, Handled: 1}, stats["working"])
}

func TestDispatch_NotRecognized(t *testing.T) {
	failing := &countingHandler{err: errors.New("bad")}
	silent := &countingHandler{response: "   "}

	d := newDispatcher(t, allowAll{}, nil,
		PluginDescriptor{Name: "failing", Tier: TierGeneral, Handler: failing},
		PluginDescriptor{Name: "silent", Tier: TierGeneral, Handler: silent},
	)

	result := d.Dispatch(context.Background(), plain("gibberish"))

	assert.False(t, result.Success)
	assert.Equal(t, MessageNotRecognized, result.Message)
	assert.ErrorIs(t, result.Err, ErrNotRecognized)

	var execErr *HandlerExecutionError
	require.ErrorAs(t, result.Err, &execErr)
	assert.Equal(t, "failing", execErr.Handler)
}

func TestDispatch_RateLimited(t *testing.T) {
	handler := &countingHandler{response: "ok"}
	limiter := security.NewRateLimiter(1, time.Minute)

	d := newDispatcher(t, limiter, nil,
		PluginDescriptor{Name: "h", Tier: TierGeneral, Handler: handler},
	)

	assert.True(t, d.Dispatch(context.Background(), plain("one")).Success)

	result := d.Dispatch(context.Background(), plain("two"))
	assert.False(t, result.Success)
	assert.Equal(t, MessageRateLimited, result.Message)
	assert.ErrorIs(t, result.Err, security.ErrRateLimitExceeded)
	assert.Equal(t, 1, handler.calls)
}

func TestDispatch_UnconfirmedSensitiveNeverInvokesHandlers(t *testing.T) {
	handler := &countingHandler{response: "sos sent"}

	d := newDispatcher(t, allowAll{}, nil,
		PluginDescriptor{Name: "sos", Tier: TierPriority, Handler: handler},
	)

	cmd := command.New("send sos", time.Now(), true)

	result := d.Dispatch(context.Background(), cmd)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrConfirmationRequired)
	assert.Equal(t, 0, handler.calls)

	cmd.Confirmed = true

	result = d.Dispatch(context.Background(), cmd)
	assert.True(t, result.Success)
	assert.Equal(t, 1, handler.calls)
}

func TestDispatch_RecordsHistory(t *testing.T) {
	ctx := context.Background()

	history, err := command_history.New(ctx, &command_history.Config{Size: 2})
	require.NoError(t, err)

	d := newDispatcher(t, allowAll{}, history,
		PluginDescriptor{Name: "echo", Tier: TierGeneral, Handler: HandlerFunc(func(_ context.Context, cmd string) (string, error) {
			if cmd == "unknown" {
				return "", nil
			}
			return "you said " + cmd, nil
		})},
	)

	d.Dispatch(ctx, plain("one"))
	d.Dispatch(ctx, plain("two"))
	d.Dispatch(ctx, plain("unknown"))

	entries := history.Last(10)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Command)
	assert.Equal(t, "you said two", entries[0].Result)
	assert.Equal(t, "echo", entries[0].Handler)
	assert.False(t, entries[1].Success)
	assert.Equal(t, MessageNotRecognized, entries[1].Result)
}

func TestRegistry_Validation(t *testing.T) {
	registry := NewRegistry()
	handler := &countingHandler{}

	assert.Error(t, registry.Register(PluginDescriptor{Tier: TierGeneral, Handler: handler}))
	assert.Error(t, registry.Register(PluginDescriptor{Name: "x", Tier: TierGeneral}))
	assert.Error(t, registry.Register(PluginDescriptor{Name: "x", Tier: Tier(7), Handler: handler}))

	require.NoError(t, registry.Register(PluginDescriptor{Name: "x", Tier: TierGeneral, Handler: handler}))
	assert.Error(t, registry.Register(PluginDescriptor{Name: "x", Tier: TierPriority, Handler: handler}))
	assert.Len(t, registry.Ordered(), 1)
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("Priority")
	require.NoError(t, err)
	assert.Equal(t, TierPriority, tier)

	tier, err = ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, TierGeneral, tier)

	_, err = ParseTier("urgent")
	assert.Error(t, err)
}

func TestParsePluginEntry(t *testing.T) {
	name, tier, err := ParsePluginEntry(" SOS ", TierPriority)
	require.NoError(t, err)
	assert.Equal(t, "sos", name)
	assert.Equal(t, TierPriority, tier)

	name, tier, err = ParsePluginEntry("history:general", TierPriority)
	require.NoError(t, err)
	assert.Equal(t, "history", name)
	assert.Equal(t, TierGeneral, tier)

	_, _, err = ParsePluginEntry("chat:urgent", TierGeneral)
	assert.Error(t, err)

	_, _, err = ParsePluginEntry(":priority", TierGeneral)
	assert.Error(t, err)
}
