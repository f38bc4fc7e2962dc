package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/hotel-checkin/backend/internal/service/recognition"
	"github.com/zhouzirui/hotel-checkin/backend/internal/service/stream"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server      ServerConfig
	Stream      StreamConfig
	Inference   InferenceConfig
	Reservation ReservationConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	streamCfg, err := loadStreamConfig()
	if err != nil {
		return nil, err
	}

	inference, err := loadInferenceConfig()
	if err != nil {
		return nil, err
	}

	reservation, err := loadReservationConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		Stream:      streamCfg,
		Inference:   inference,
		Reservation: reservation,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StreamConfig 描述识别会话的运行参数。
type StreamConfig struct {
	MaxFrameBytes    int
	MinFrameInterval time.Duration
	InferenceTimeout time.Duration
	IdleTimeout      time.Duration
	ConfirmStreak    int
	StreakDecay      int
}

// Options 将配置转换为会话层选项，未设置的项保持默认值。
func (c StreamConfig) Options() *stream.Options {
	opts := stream.DefaultOptions()
	if c.MaxFrameBytes > 0 {
		opts.MaxFrameBytes = c.MaxFrameBytes
	}
	if c.MinFrameInterval > 0 {
		opts.MinFrameInterval = c.MinFrameInterval
	}
	if c.InferenceTimeout > 0 {
		opts.InferenceTimeout = c.InferenceTimeout
	}
	if c.IdleTimeout > 0 {
		opts.IdleTimeout = c.IdleTimeout
	}
	if c.ConfirmStreak > 0 || c.StreakDecay > 0 {
		opts.Recognition = recognition.Config{
			ConfirmStreak:  c.ConfirmStreak,
			DecayTolerance: c.StreakDecay,
		}
	}
	return opts
}

func loadStreamConfig() (StreamConfig, error) {
	maxBytes, err := parseOptionalIntEnv("FACE_MAX_FRAME_BYTES")
	if err != nil {
		return StreamConfig{}, err
	}

	minInterval, err := parseOptionalIntEnv("FACE_MIN_FRAME_INTERVAL_MS")
	if err != nil {
		return StreamConfig{}, err
	}

	inferenceTimeout, err := parseOptionalIntEnv("FACE_INFERENCE_TIMEOUT_MS")
	if err != nil {
		return StreamConfig{}, err
	}

	idleTimeout, err := parseOptionalIntEnv("FACE_IDLE_TIMEOUT_S")
	if err != nil {
		return StreamConfig{}, err
	}

	confirmStreak, err := parseOptionalIntEnv("FACE_CONFIRM_STREAK")
	if err != nil {
		return StreamConfig{}, err
	}

	decay, err := parseOptionalIntEnv("FACE_STREAK_DECAY")
	if err != nil {
		return StreamConfig{}, err
	}

	cfg := StreamConfig{}
	if maxBytes != nil {
		cfg.MaxFrameBytes = *maxBytes
	}
	if minInterval != nil {
		cfg.MinFrameInterval = time.Duration(*minInterval) * time.Millisecond
	}
	if inferenceTimeout != nil {
		cfg.InferenceTimeout = time.Duration(*inferenceTimeout) * time.Millisecond
	}
	if idleTimeout != nil {
		cfg.IdleTimeout = time.Duration(*idleTimeout) * time.Second
	}
	if confirmStreak != nil {
		cfg.ConfirmStreak = *confirmStreak
	}
	if decay != nil {
		cfg.StreakDecay = *decay
	}
	return cfg, nil
}

// InferenceConfig 描述人脸推理边车的访问配置。
type InferenceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Enabled 表示是否提供了推理服务地址。
func (c InferenceConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadInferenceConfig() (InferenceConfig, error) {
	timeout, err := parseOptionalIntEnv("INFERENCE_TIMEOUT_MS")
	if err != nil {
		return InferenceConfig{}, err
	}

	cfg := InferenceConfig{
		BaseURL: strings.TrimSuffix(strings.TrimSpace(os.Getenv("INFERENCE_BASE_URL")), "/"),
		Timeout: 2 * time.Second,
	}
	if timeout != nil {
		cfg.Timeout = time.Duration(*timeout) * time.Millisecond
	}
	return cfg, nil
}

// ReservationConfig 描述预订后端的访问配置。
type ReservationConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Enabled 表示是否提供了预订后端地址。
func (c ReservationConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadReservationConfig() (ReservationConfig, error) {
	timeout, err := parseOptionalIntEnv("RESERVATION_TIMEOUT_S")
	if err != nil {
		return ReservationConfig{}, err
	}

	cfg := ReservationConfig{
		BaseURL: strings.TrimSuffix(strings.TrimSpace(os.Getenv("RESERVATION_BASE_URL")), "/"),
		Token:   strings.TrimSpace(os.Getenv("RESERVATION_TOKEN")),
		Timeout: 10 * time.Second,
	}
	if timeout != nil {
		cfg.Timeout = time.Duration(*timeout) * time.Second
	}
	return cfg, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
