package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestLimiter(max int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	rl := NewRateLimiter(max, window)
	rl.now = clock.Now

	return rl, clock
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter(10, 60*time.Second)
	start := clock.now

	for i := 0; i < 10; i++ {
		assert.True(t, rl.CanExecute(), "call %d", i)
	}

	assert.False(t, rl.CanExecute())
	assert.Len(t, rl.timestamps, 10)

	clock.now = start.Add(61 * time.Second)
	assert.True(t, rl.CanExecute())
	assert.Len(t, rl.timestamps, 1)
}

func TestRateLimiter_RejectionDoesNotMutateWindow(t *testing.T) {
	rl, clock := newTestLimiter(2, 10*time.Second)
	start := clock.now

	require.True(t, rl.CanExecute())

	clock.now = start.Add(5 * time.Second)
	require.True(t, rl.CanExecute())

	// rejected calls at t=6..9 must not extend the window
	for i := 6; i < 10; i++ {
		clock.now = start.Add(time.Duration(i) * time.Second)
		assert.False(t, rl.CanExecute())
	}

	assert.Len(t, rl.timestamps, 2)

	clock.now = start.Add(11 * time.Second)
	assert.True(t, rl.CanExecute(), "first entry expired")
	assert.False(t, rl.CanExecute())
}

func TestManager_IsSensitive(t *testing.T) {
	m, err := NewManager(&Config{SensitiveKeywords: []string{"SOS", " emergency ", ""}})
	require.NoError(t, err)

	assert.True(t, m.IsSensitive("send sos now"))
	assert.True(t, m.IsSensitive("This is an Emergency"))
	assert.False(t, m.IsSensitive("play some music"))
	assert.False(t, m.EncryptionEnabled())
}

func TestManager_SealOpen(t *testing.T) {
	m, err := NewManager(&Config{Passphrase: "correct horse"})
	require.NoError(t, err)
	require.True(t, m.EncryptionEnabled())

	sealed, err := m.Seal([]byte("send sos"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "send sos")

	plaintext, err := m.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "send sos", string(plaintext))

	other, err := NewManager(&Config{Passphrase: "wrong"})
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestManager_SealWithoutPassphrase(t *testing.T) {
	m, err := NewManager(&Config{})
	require.NoError(t, err)

	_, err = m.Seal([]byte("x"))
	assert.ErrorIs(t, err, ErrEncryptionDisabled)
}
