package domain

import (
	"testing"
	"time"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.MaxChunkSize != 800 {
		t.Errorf("expected max chunk size 800, got %d", cfg.MaxChunkSize)
	}
	if cfg.MaxUploadBytes != 25*1024*1024 {
		t.Errorf("expected 25 MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
}

func TestPipelineConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *PipelineConfig)
	}{
		{"zero chunk size", func(c *PipelineConfig) { c.MaxChunkSize = 0 }},
		{"zero concurrency", func(c *PipelineConfig) { c.PassageConcurrency = 0 }},
		{"zero attempts", func(c *PipelineConfig) { c.EmbedMaxAttempts = 0 }},
		{"inverted backoff", func(c *PipelineConfig) { c.EmbedMaxBackoff = time.Millisecond }},
		{"score out of range", func(c *PipelineConfig) { c.MinScore = 1.5 }},
		{"limits inverted", func(c *PipelineConfig) { c.MaxSearchLimit = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPipelineConfig_ClampSearchLimit(t *testing.T) {
	cfg := DefaultPipelineConfig()

	tests := []struct {
		in, want int
	}{
		{0, 10},
		{-3, 10},
		{25, 25},
		{1000, 100},
	}
	for _, tt := range tests {
		if got := cfg.ClampSearchLimit(tt.in); got != tt.want {
			t.Errorf("ClampSearchLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPipelineConfig_EmbedBackoff(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.EmbedBaseBackoff = 100 * time.Millisecond
	cfg.EmbedMaxBackoff = time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{20, time.Second},
	}
	for _, tt := range tests {
		if got := cfg.EmbedBackoff(tt.attempt); got != tt.want {
			t.Errorf("EmbedBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
