package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	BackendHost  string `env:"BACKEND_HOST" default:"localhost"`
	BackendPort  int    `env:"BACKEND_PORT" default:"7001"`
	VideoPath    string `env:"VIDEO_PATH" default:"/ws/vid_stream"`
	OrdersPath   string `env:"ORDERS_PATH" default:"/ws/order_info"`
	StatusPath   string `env:"STATUS_PATH" default:"/ws/status"`
	FeedbackPath string `env:"FEEDBACK_PATH" default:"/ws/feedback"`
	ControlPath  string `env:"CONTROL_PATH" default:"/ws/admin"`

	ChannelRetryDelay    time.Duration `env:"CHANNEL_RETRY_DELAY" default:"5s"`
	ChannelProbeInterval time.Duration `env:"CHANNEL_PROBE_INTERVAL" default:"1s"`
	ChannelMaxRetries    int           `env:"CHANNEL_MAX_RETRIES" default:"300"`
	ChannelHandshake     time.Duration `env:"CHANNEL_HANDSHAKE_TIMEOUT" default:"10s"`

	PresentationCapacity int           `env:"PRESENTATION_CAPACITY" default:"4"`
	PromoteInterval      time.Duration `env:"PROMOTE_INTERVAL" default:"50ms"`
	PlaybackInterval     time.Duration `env:"PLAYBACK_INTERVAL" default:"3s"`

	FreshWindow               time.Duration `env:"FRESH_WINDOW" default:"3s"`
	StatusStartupPollInterval time.Duration `env:"STATUS_STARTUP_POLL_INTERVAL" default:"2s"`
	StatusOrderPollDelay      time.Duration `env:"STATUS_ORDER_POLL_DELAY" default:"5s"`
	StatusOrderPollInterval   time.Duration `env:"STATUS_ORDER_POLL_INTERVAL" default:"2s"`
	DefaultStatusTimeout      time.Duration `env:"DEFAULT_STATUS_TIMEOUT" default:"5s"`
	SuccessMessageTimeout     time.Duration `env:"SUCCESS_MESSAGE_TIMEOUT" default:"2s"`

	VideoLivenessWindow time.Duration `env:"VIDEO_LIVENESS_WINDOW" default:"2s"`
	VideoCheckInterval  time.Duration `env:"VIDEO_CHECK_INTERVAL" default:"2s"`

	AudioPlayerCmd string `env:"AUDIO_PLAYER_CMD"`

	HTTPAddr     string  `env:"HTTP_ADDR" default:"127.0.0.1:8080"`
	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"5"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"10"`

	DisplayMaxClients int `env:"DISPLAY_MAX_CLIENTS" default:"8"`

	ConfigFile string `env:"KIOSK_CONFIG_FILE"`

	// Texts holds operator-facing strings, optionally overridden by ConfigFile.
	Texts Texts
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	texts, err := LoadTexts(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.Texts = texts

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ChannelURL returns the backend endpoint for stream.
func (c *Config) ChannelURL(stream domain.StreamID) string {
	path := map[domain.StreamID]string{
		domain.StreamVideo:    c.VideoPath,
		domain.StreamOrders:   c.OrdersPath,
		domain.StreamStatus:   c.StatusPath,
		domain.StreamFeedback: c.FeedbackPath,
		domain.StreamControl:  c.ControlPath,
	}[stream]
	return "ws://" + net.JoinHostPort(c.BackendHost, strconv.Itoa(c.BackendPort)) + path
}

func validate(cfg *Config) error {
	if cfg.BackendHost == "" {
		return errors.New("BACKEND_HOST is required")
	}
	if cfg.BackendPort < 1 || cfg.BackendPort > 65535 {
		return fmt.Errorf("BACKEND_PORT must be between 1 and 65535, got %d", cfg.BackendPort)
	}

	durations := map[string]time.Duration{
		"CHANNEL_RETRY_DELAY":          cfg.ChannelRetryDelay,
		"CHANNEL_PROBE_INTERVAL":       cfg.ChannelProbeInterval,
		"CHANNEL_HANDSHAKE_TIMEOUT":    cfg.ChannelHandshake,
		"PROMOTE_INTERVAL":             cfg.PromoteInterval,
		"PLAYBACK_INTERVAL":            cfg.PlaybackInterval,
		"FRESH_WINDOW":                 cfg.FreshWindow,
		"STATUS_STARTUP_POLL_INTERVAL": cfg.StatusStartupPollInterval,
		"STATUS_ORDER_POLL_DELAY":      cfg.StatusOrderPollDelay,
		"STATUS_ORDER_POLL_INTERVAL":   cfg.StatusOrderPollInterval,
		"DEFAULT_STATUS_TIMEOUT":       cfg.DefaultStatusTimeout,
		"SUCCESS_MESSAGE_TIMEOUT":      cfg.SuccessMessageTimeout,
		"VIDEO_LIVENESS_WINDOW":        cfg.VideoLivenessWindow,
		"VIDEO_CHECK_INTERVAL":         cfg.VideoCheckInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if cfg.ChannelMaxRetries < 1 {
		return fmt.Errorf("CHANNEL_MAX_RETRIES must be at least 1, got %d", cfg.ChannelMaxRetries)
	}
	if cfg.PresentationCapacity < 1 {
		return fmt.Errorf("PRESENTATION_CAPACITY must be at least 1, got %d", cfg.PresentationCapacity)
	}
	if cfg.DisplayMaxClients < 1 {
		return fmt.Errorf("DISPLAY_MAX_CLIENTS must be at least 1, got %d", cfg.DisplayMaxClients)
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("HTTP_ADDR must be host:port: %w", err)
	}

	return nil
}
