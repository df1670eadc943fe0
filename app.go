package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"canopus/audio_capture"
	"canopus/clients/ai_bot"
	"canopus/command_history"
	"canopus/config"
	"canopus/dispatcher"
	"canopus/frame_processor"
	"canopus/frame_processor/voice_activity_detection"
	"canopus/listener"
	"canopus/logger"
	"canopus/plugins/chat"
	"canopus/plugins/history"
	"canopus/plugins/sos"
	"canopus/security"
	"canopus/session"
	"canopus/speech_extraction"
	"canopus/speech_output"
	"canopus/speech_to_text"
	"canopus/wake_word"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const statsInterval = 5 * time.Minute

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.STT.Model == "" {
		return errors.New("whisper model not specified")
	}

	fileSys := afero.NewOsFs()

	var redisClient *redis.Client

	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
		}

		logger.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	keywords := cfg.Security.SensitiveKeywords
	if pluginEnabled(cfg, sos.Name) {
		keywords = sos.SensitiveKeywords(keywords)
	}

	manager, err := security.NewManager(&security.Config{
		SensitiveKeywords: keywords,
		Passphrase:        cfg.Security.HistoryPassphrase,
	})
	if err != nil {
		return err
	}

	commandHistory, err := newHistory(ctx, cfg, fileSys, redisClient, manager)
	if err != nil {
		return err
	}

	defer func() {
		if err := commandHistory.Close(); err != nil {
			logger.Warn("Failed to close command history", zap.Error(err))
		}
	}()

	registry, err := newRegistry(cfg, commandHistory, redisClient)
	if err != nil {
		return err
	}

	d, err := dispatcher.New(&dispatcher.Config{
		Registry:    registry,
		RateLimiter: security.NewRateLimiter(cfg.Security.RateLimitMax, cfg.Security.RateLimitWindow),
		History:     commandHistory,
	})
	if err != nil {
		return err
	}

	machine, err := session.New(&session.Config{
		Gate:         wake_word.NewGate(cfg.Session.WakeWord, cfg.Session.WakeAliases...),
		Sensitivity:  manager,
		Dispatcher:   d,
		TimeoutTicks: cfg.Session.CommandTimeoutTicks,
	})
	if err != nil {
		return err
	}

	queue := audio_capture.NewQueue(cfg.Audio.QueueCapacity)

	source, err := newSource(cfg, fileSys, queue)
	if err != nil {
		return err
	}

	processor, err := newProcessor(cfg)
	if err != nil {
		return err
	}

	var recorder speech_extraction.Interface

	if cfg.Recording.Dir != "" {
		recorder, err = speech_extraction.New(&speech_extraction.Config{
			FileSys: fileSys,
			Dir:     cfg.Recording.Dir,
		})
		if err != nil {
			return err
		}
	}

	// Load model
	model, err := whisper.New(cfg.STT.Model)
	if err != nil {
		return fmt.Errorf("load whisper model: %w", err)
	}

	sttEngine, err := speech_to_text.New(&speech_to_text.Config{
		Model:    model,
		Language: cfg.STT.Language,
	})
	if err != nil {
		_ = model.Close()

		return err
	}

	l, err := listener.New(&listener.Config{
		Source:          source,
		Queue:           queue,
		Processor:       processor,
		STTEngine:       sttEngine,
		Machine:         machine,
		Speaker:         speech_output.NewLogSpeaker(),
		Recorder:        recorder,
		PollInterval:    cfg.Session.PollInterval,
		ShutdownTimeout: cfg.Listener.ShutdownTimeout,
	})
	if err != nil {
		_ = sttEngine.Close()

		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()

		return l.ListenLoop(gctx)
	})

	g.Go(func() error {
		reportStats(gctx, d)

		return nil
	})

	return g.Wait()
}

func newHistory(ctx context.Context, cfg *config.Config, fileSys afero.Fs, redisClient *redis.Client, manager *security.Manager) (*command_history.History, error) {
	var cipher command_history.Cipher
	if manager.EncryptionEnabled() {
		cipher = manager
	}

	var (
		store command_history.Store
		err   error
	)

	switch {
	case cfg.History.UseRedis:
		if redisClient == nil {
			return nil, errors.New("history.use_redis requires redis.addr")
		}

		store, err = command_history.NewRedisStore(&command_history.RedisStoreConfig{
			Client:     redisClient,
			Key:        cfg.History.RedisKey,
			MaxEntries: cfg.History.Size,
			Cipher:     cipher,
		})
	case cfg.History.Path != "":
		store, err = command_history.NewFileStore(&command_history.FileStoreConfig{
			FileSys:    fileSys,
			Path:       cfg.History.Path,
			MaxEntries: cfg.History.Size,
			Cipher:     cipher,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	return command_history.New(ctx, &command_history.Config{
		Size:  cfg.History.Size,
		Store: store,
	})
}

// defaultTiers apply to plugin entries configured without a tier.
var defaultTiers = map[string]dispatcher.Tier{
	history.Name: dispatcher.TierPriority,
	sos.Name:     dispatcher.TierPriority,
	chat.Name:    dispatcher.TierGeneral,
}

func pluginEnabled(cfg *config.Config, name string) bool {
	for _, entry := range cfg.Plugins.Enabled {
		if entryName, _, err := dispatcher.ParsePluginEntry(entry, dispatcher.TierGeneral); err == nil && entryName == name {
			return true
		}
	}

	return false
}

func newRegistry(cfg *config.Config, commandHistory *command_history.History, redisClient *redis.Client) (*dispatcher.Registry, error) {
	registry := dispatcher.NewRegistry()

	for _, entry := range cfg.Plugins.Enabled {
		name, _, err := dispatcher.ParsePluginEntry(entry, dispatcher.TierGeneral)
		if err != nil {
			return nil, err
		}

		fallback, known := defaultTiers[name]
		if !known {
			return nil, fmt.Errorf("unknown plugin %q", name)
		}

		_, tier, err := dispatcher.ParsePluginEntry(entry, fallback)
		if err != nil {
			return nil, err
		}

		var handler dispatcher.Handler

		switch name {
		case history.Name:
			handler, err = history.New(&history.Config{Reader: commandHistory})
		case sos.Name:
			var publisher sos.Publisher
			if redisClient != nil {
				publisher = sos.NewRedisPublisher(redisClient, cfg.Plugins.AlertChannel)
			}

			handler, err = sos.New(&sos.Config{Publisher: publisher})
		case chat.Name:
			if cfg.Plugins.ChatAPIHost == "" {
				logger.Warn("Chat plugin enabled without plugins.chat_api_host, skipping")
				continue
			}

			var client ai_bot.AIBotAPI

			client, err = ai_bot.NewClient(&ai_bot.Config{ApiHost: cfg.Plugins.ChatAPIHost})
			if err != nil {
				return nil, err
			}

			handler, err = chat.New(&chat.Config{Client: client})
		}

		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}

		if err := registry.Register(dispatcher.PluginDescriptor{Name: name, Tier: tier, Handler: handler}); err != nil {
			return nil, err
		}

		logger.Info("Plugin registered", zap.String("name", name), zap.String("tier", tier.String()))
	}

	return registry, nil
}

func newSource(cfg *config.Config, fileSys afero.Fs, queue *audio_capture.Queue) (audio_capture.Source, error) {
	if cfg.Audio.InputFile != "" {
		return audio_capture.NewWavFile(&audio_capture.WavFileConfig{
			FileSys:   fileSys,
			Path:      cfg.Audio.InputFile,
			BlockSize: cfg.Audio.BlockSize,
			Paced:     true,
			Queue:     queue,
		})
	}

	return audio_capture.NewPortAudio(&audio_capture.PortAudioConfig{
		DeviceName: cfg.Audio.Device,
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		BlockSize:  cfg.Audio.BlockSize,
		Queue:      queue,
	})
}

func newProcessor(cfg *config.Config) (frame_processor.Interface, error) {
	var detector voice_activity_detection.Detector

	switch cfg.Processor.VAD {
	case "flux":
		detector = voice_activity_detection.NewFlux(&voice_activity_detection.FluxConfig{
			Ratio:          cfg.Processor.FluxRatio,
			HangoverFrames: cfg.Processor.HangoverFrames,
		})
	case "energy":
		detector = voice_activity_detection.NewEnergy(cfg.Processor.EnergyThreshold)
	default:
		return nil, fmt.Errorf("unknown vad %q", cfg.Processor.VAD)
	}

	return frame_processor.New(&frame_processor.Config{
		LowCutHz:         cfg.Processor.LowCutHz,
		HighCutHz:        cfg.Processor.HighCutHz,
		EnergyThreshold:  cfg.Processor.EnergyThreshold,
		Detector:         detector,
		MaxSegmentFrames: cfg.Processor.MaxSegmentFrames,
	})
}

func reportStats(ctx context.Context, d *dispatcher.Dispatcher) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, stats := range d.Stats() {
				logger.Info("Plugin stats",
					zap.String("plugin", name),
					zap.Int("invocations", stats.Invocations),
					zap.Int("handled", stats.Handled),
					zap.Int("errors", stats.Errors))
			}
		}
	}
}
