package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendPrompt(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)

	return args.String(0), args.Error(1)
}

func TestExecute(t *testing.T) {
	bot := &MockBot{}
	bot.On("SendPrompt", mock.Anything, "tell me a joke").Return(" a joke \n", nil)

	p, err := New(&Config{Client: bot})
	require.NoError(t, err)

	resp, err := p.Execute(context.Background(), "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, "a joke", resp)
}

func TestExecute_Error(t *testing.T) {
	bot := &MockBot{}
	bot.On("SendPrompt", mock.Anything, mock.Anything).Return("", errors.New("timeout"))

	p, err := New(&Config{Client: bot})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), "hello")
	assert.ErrorContains(t, err, "timeout")
}

func TestExecute_EmptyCommand(t *testing.T) {
	bot := &MockBot{}

	p, err := New(&Config{Client: bot})
	require.NoError(t, err)

	resp, err := p.Execute(context.Background(), " ")
	require.NoError(t, err)
	assert.Empty(t, resp)
	bot.AssertNotCalled(t, "SendPrompt", mock.Anything, mock.Anything)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}
