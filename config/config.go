package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"canopus/logger"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Debug bool `yaml:"debug" env:"CANOPUS_DEBUG" env-default:"false"`

	Audio struct {
		SampleRate    int    `yaml:"sample_rate" env:"AUDIO_SAMPLE_RATE" env-default:"16000"`
		Channels      int    `yaml:"channels" env:"AUDIO_CHANNELS" env-default:"1"`
		BlockSize     int    `yaml:"block_size" env:"AUDIO_BLOCK_SIZE" env-default:"480"`
		QueueCapacity int    `yaml:"queue_capacity" env:"AUDIO_QUEUE_CAPACITY" env-default:"64"`
		Device        string `yaml:"device" env:"AUDIO_DEVICE"`
		InputFile     string `yaml:"input_file" env:"AUDIO_INPUT_FILE"`
	} `yaml:"audio"`

	Processor struct {
		LowCutHz         float64 `yaml:"low_cut_hz" env:"PROCESSOR_LOW_CUT_HZ" env-default:"100"`
		HighCutHz        float64 `yaml:"high_cut_hz" env:"PROCESSOR_HIGH_CUT_HZ" env-default:"3000"`
		EnergyThreshold  float64 `yaml:"energy_threshold" env:"PROCESSOR_ENERGY_THRESHOLD" env-default:"0.01"`
		VAD              string  `yaml:"vad" env:"PROCESSOR_VAD" env-default:"flux"`
		FluxRatio        float64 `yaml:"flux_ratio" env:"PROCESSOR_FLUX_RATIO" env-default:"1.75"`
		HangoverFrames   int     `yaml:"hangover_frames" env:"PROCESSOR_HANGOVER_FRAMES" env-default:"7"`
		MaxSegmentFrames int     `yaml:"max_segment_frames" env:"PROCESSOR_MAX_SEGMENT_FRAMES" env-default:"50"`
	} `yaml:"processor"`

	Session struct {
		WakeWord            string        `yaml:"wake_word" env:"WAKE_WORD" env-default:"canopus"`
		WakeAliases         []string      `yaml:"wake_aliases" env:"WAKE_ALIASES" env-separator:","`
		CommandTimeoutTicks int           `yaml:"command_timeout_ticks" env:"COMMAND_TIMEOUT_TICKS" env-default:"80"`
		PollInterval        time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" env-default:"100ms"`
	} `yaml:"session"`

	Security struct {
		RateLimitMax      int           `yaml:"rate_limit_max" env:"RATE_LIMIT_MAX" env-default:"10"`
		RateLimitWindow   time.Duration `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW" env-default:"60s"`
		SensitiveKeywords []string      `yaml:"sensitive_keywords" env:"SENSITIVE_KEYWORDS" env-separator:"," env-default:"sos,emergency,help me,send email"`
		HistoryPassphrase string        `yaml:"history_passphrase" env:"HISTORY_PASSPHRASE"`
	} `yaml:"security"`

	History struct {
		Size     int    `yaml:"size" env:"HISTORY_SIZE" env-default:"100"`
		Path     string `yaml:"path" env:"HISTORY_PATH"`
		RedisKey string `yaml:"redis_key" env:"HISTORY_REDIS_KEY" env-default:"canopus:history"`
		UseRedis bool   `yaml:"use_redis" env:"HISTORY_USE_REDIS" env-default:"false"`
	} `yaml:"history"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	} `yaml:"redis"`

	STT struct {
		Model    string `yaml:"model" env:"WHISPER_MODEL"`
		Language string `yaml:"language" env:"WHISPER_LANGUAGE" env-default:"en"`
	} `yaml:"stt"`

	Plugins struct {
		Enabled      []string `yaml:"enabled" env:"PLUGINS_ENABLED" env-separator:"," env-default:"history,sos,chat"`
		ChatAPIHost  string   `yaml:"chat_api_host" env:"CHAT_API_HOST"`
		AlertChannel string   `yaml:"alert_channel" env:"ALERT_CHANNEL" env-default:"canopus:alerts"`
	} `yaml:"plugins"`

	Recording struct {
		Dir string `yaml:"dir" env:"RECORDING_DIR"`
	} `yaml:"recording"`

	Listener struct {
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"2s"`
	} `yaml:"listener"`
}

// LoadConfig reads path when it exists and applies environment overrides.
// A missing file is not an error: defaults and the environment are used.
func LoadConfig(path string) (*Config, error) {
	// Load .env file
	_ = godotenv.Load()

	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Config loaded successfully", zap.String("path", path))
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate <= 0 {
		errs = append(errs, errors.New("audio.sample_rate must be positive"))
	}

	if c.Audio.Channels <= 0 {
		errs = append(errs, errors.New("audio.channels must be positive"))
	}

	if c.Audio.BlockSize <= 0 {
		errs = append(errs, errors.New("audio.block_size must be positive"))
	}

	if c.Audio.QueueCapacity <= 0 {
		errs = append(errs, errors.New("audio.queue_capacity must be positive"))
	}

	if c.Processor.MaxSegmentFrames <= 0 {
		errs = append(errs, errors.New("processor.max_segment_frames must be positive"))
	}

	if c.Session.WakeWord == "" {
		errs = append(errs, errors.New("session.wake_word is required"))
	}

	if c.Session.CommandTimeoutTicks <= 0 {
		errs = append(errs, errors.New("session.command_timeout_ticks must be positive"))
	}

	if c.Session.PollInterval <= 0 {
		errs = append(errs, errors.New("session.poll_interval must be positive"))
	}

	if c.Security.RateLimitMax <= 0 || c.Security.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("security rate limit must be positive"))
	}

	if c.History.Size <= 0 {
		errs = append(errs, errors.New("history.size must be positive"))
	}

	if c.History.UseRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("history.use_redis requires redis.addr"))
	}

	return errors.Join(errs...)
}
