package ai_bot

import "context"

// AIBotAPI sends a prompt to the chat backend and returns its reply.
type AIBotAPI interface {
	SendPrompt(ctx context.Context, prompt string) (string, error)
}
