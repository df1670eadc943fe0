package sos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"canopus/dispatcher"
	"canopus/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	Name = "sos"

	DefaultChannel = "canopus:alerts"
)

// Triggers are the phrases that raise an alert.
var Triggers = []string{"sos", "emergency", "help me"}

// Alert is published for every emergency command.
type Alert struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers an encoded alert. A nil publisher only logs.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

type redisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) Publisher {
	if channel == "" {
		channel = DefaultChannel
	}

	return &redisPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *redisPublisher) Publish(ctx context.Context, payload []byte) error {
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}

	logger.Info("Emergency alert published", zap.String("channel", p.channel), zap.Int64("receivers", receivers))

	return nil
}

type pluginImpl struct {
	publisher Publisher
	now       func() time.Time
}

type Config struct {
	Publisher Publisher
}

func New(cfg *Config) (dispatcher.Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &pluginImpl{
		publisher: cfg.Publisher,
		now:       time.Now,
	}, nil
}

func (p *pluginImpl) Execute(ctx context.Context, cmd string) (string, error) {
	if !matches(cmd) {
		return "", nil
	}

	alert := Alert{
		ID:        uuid.NewString(),
		Command:   cmd,
		Timestamp: p.now().UTC(),
	}

	if p.publisher == nil {
		logger.Warn("Emergency alert raised without a publisher",
			zap.String("id", alert.ID),
			zap.String("command", alert.Command))

		return "Emergency alert logged.", nil
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return "", fmt.Errorf("encode alert: %w", err)
	}

	if err := p.publisher.Publish(ctx, payload); err != nil {
		return "", err
	}

	return "Emergency alert sent.", nil
}

func matches(cmd string) bool {
	cmd = strings.ToLower(cmd)

	for _, trigger := range Triggers {
		if strings.Contains(cmd, trigger) {
			return true
		}
	}

	return false
}

// SensitiveKeywords adds the alert triggers to the configured keywords, so an
// alert can never go out without confirmation.
func SensitiveKeywords(configured []string) []string {
	keywords := make([]string, 0, len(configured)+len(Triggers))
	seen := make(map[string]bool, len(configured)+len(Triggers))

	for _, keyword := range append(append([]string(nil), configured...), Triggers...) {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" || seen[keyword] {
			continue
		}

		seen[keyword] = true
		keywords = append(keywords, keyword)
	}

	return keywords
}
