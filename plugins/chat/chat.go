package chat

import (
	"context"
	"fmt"
	"strings"

	"canopus/clients/ai_bot"
	"canopus/dispatcher"
)

const Name = "chat"

type pluginImpl struct {
	client ai_bot.AIBotAPI
}

type Config struct {
	Client ai_bot.AIBotAPI
}

// New returns the catch-all handler that forwards commands to the bot.
// Register it last in the general tier.
func New(cfg *Config) (dispatcher.Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("client is nil")
	}

	return &pluginImpl{
		client: cfg.Client,
	}, nil
}

func (p *pluginImpl) Execute(ctx context.Context, cmd string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", nil
	}

	resp, err := p.client.SendPrompt(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	return strings.TrimSpace(resp), nil
}
