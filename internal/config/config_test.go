package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Inference.Enabled() {
		t.Fatalf("inference should be disabled without INFERENCE_BASE_URL")
	}
	if cfg.Reservation.Enabled() {
		t.Fatalf("reservation should be disabled without RESERVATION_BASE_URL")
	}
}

func TestLoadServerAddrVariants(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("expected :9000, got %s", cfg.Server.Addr)
	}

	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("expected host:port preserved, got %s", cfg.Server.Addr)
	}
}

func TestLoadStreamOverrides(t *testing.T) {
	t.Setenv("FACE_MAX_FRAME_BYTES", "1048576")
	t.Setenv("FACE_MIN_FRAME_INTERVAL_MS", "50")
	t.Setenv("FACE_INFERENCE_TIMEOUT_MS", "1500")
	t.Setenv("FACE_IDLE_TIMEOUT_S", "60")
	t.Setenv("FACE_CONFIRM_STREAK", "5")
	t.Setenv("FACE_STREAK_DECAY", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := cfg.Stream.Options()
	if opts.MaxFrameBytes != 1048576 {
		t.Fatalf("expected 1MiB frame limit, got %d", opts.MaxFrameBytes)
	}
	if opts.MinFrameInterval != 50*time.Millisecond {
		t.Fatalf("unexpected min frame interval: %v", opts.MinFrameInterval)
	}
	if opts.InferenceTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected inference timeout: %v", opts.InferenceTimeout)
	}
	if opts.IdleTimeout != 60*time.Second {
		t.Fatalf("unexpected idle timeout: %v", opts.IdleTimeout)
	}
	if opts.Recognition.ConfirmStreak != 5 {
		t.Fatalf("unexpected confirm streak: %d", opts.Recognition.ConfirmStreak)
	}
	if opts.Recognition.DecayTolerance != 1 {
		t.Fatalf("unexpected streak decay: %d", opts.Recognition.DecayTolerance)
	}
}

func TestLoadStreamPartialOverrideKeepsDefaults(t *testing.T) {
	t.Setenv("FACE_CONFIRM_STREAK", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := cfg.Stream.Options()
	if opts.Recognition.ConfirmStreak != 4 {
		t.Fatalf("unexpected confirm streak: %d", opts.Recognition.ConfirmStreak)
	}
	if opts.MaxFrameBytes <= 0 {
		t.Fatalf("frame limit default lost: %d", opts.MaxFrameBytes)
	}
}

func TestLoadInvalidInt(t *testing.T) {
	t.Setenv("FACE_MAX_FRAME_BYTES", "huge")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric FACE_MAX_FRAME_BYTES")
	}
}

func TestLoadCollaborators(t *testing.T) {
	t.Setenv("INFERENCE_BASE_URL", "http://127.0.0.1:8001/")
	t.Setenv("RESERVATION_BASE_URL", "http://127.0.0.1:8000")
	t.Setenv("RESERVATION_TOKEN", "secret")
	t.Setenv("RESERVATION_TIMEOUT_S", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Inference.Enabled() || cfg.Inference.BaseURL != "http://127.0.0.1:8001" {
		t.Fatalf("unexpected inference config: %+v", cfg.Inference)
	}
	if !cfg.Reservation.Enabled() || cfg.Reservation.Token != "secret" {
		t.Fatalf("unexpected reservation config: %+v", cfg.Reservation)
	}
	if cfg.Reservation.Timeout != 3*time.Second {
		t.Fatalf("unexpected reservation timeout: %v", cfg.Reservation.Timeout)
	}
}
