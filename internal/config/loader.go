package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "LINEUP_"
	EnvConfigFile = "LINEUP_CONFIG"
)

// listKeys are read from env as comma-separated values.
var listKeys = map[string]struct{}{
	"cors_origins":  {},
	"ocr_languages": {},
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if LINEUP_CONFIG is set
//  3. env (prefix LINEUP_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrLoadConfig, path, err)
		}
	}

	// LINEUP_FRAME_SKIP -> frame_skip. Underscores are kept to match the flat koanf tags.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(s, v string) (string, interface{}) {
		if s == EnvConfigFile {
			return "", nil
		}
		key := strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		if _, ok := listKeys[key]; ok {
			return key, splitList(v)
		}
		return key, v
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.QueueSize <= 0:
		return invalid("queue_size must be positive")
	case c.WorkerCount <= 0:
		return invalid("worker_count must be positive")
	case c.FrameSkip <= 0:
		return invalid("frame_skip must be positive")
	case c.MatchThreshold < -1 || c.MatchThreshold > 1:
		return invalid("match_threshold must be within [-1, 1]")
	case !(c.ROITop >= 0 && c.ROITop < c.ROIBottom && c.ROIBottom <= 1):
		return invalid("roi_top/roi_bottom must satisfy 0 <= top < bottom <= 1")
	case !(c.ROILeft >= 0 && c.ROILeft < c.ROIRight && c.ROIRight <= 1):
		return invalid("roi_left/roi_right must satisfy 0 <= left < right <= 1")
	case c.ProcessSkip < 0:
		return invalid("process_skip must not be negative")
	case c.ConfirmThreshold <= 0:
		return invalid("confirm_threshold must be positive")
	case c.TargetRosters <= 0:
		return invalid("target_rosters must be positive")
	case c.RosterSize <= 0:
		return invalid("roster_size must be positive")
	case c.RosterSizePolicy != "exact" && c.RosterSizePolicy != "at_least":
		return invalid("roster_size_policy must be exact or at_least")
	case c.OCRScale <= 0:
		return invalid("ocr_scale must be positive")
	case c.OCRBinaryCutoff < 0 || c.OCRBinaryCutoff > 255:
		return invalid("ocr_binary_cutoff must be within [0, 255]")
	case c.OCRGain <= 0:
		return invalid("ocr_gain must be positive")
	case c.TemplatePath == "":
		return invalid("template_path must not be empty")
	}

	switch c.StorageBackend {
	case StorageS3:
		if c.S3Bucket == "" {
			return invalid("s3_bucket is required when storage_backend is s3")
		}
	case StorageLocal:
		if c.LocalVideoDir == "" {
			return invalid("local_video_dir is required when storage_backend is local")
		}
	default:
		return invalid("storage_backend must be s3 or local")
	}
	return nil
}

// splitList splits a comma-separated value, trimming blanks and dropping empty items.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
