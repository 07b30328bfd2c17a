// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Keys are flat koanf tags so every field can be set from LINEUP_<KEY>.
//   - New builds a Config holding the documented defaults.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Storage backends for locating the input video.
const (
	StorageS3    = "s3"
	StorageLocal = "local"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text, json or console output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`
	// CORSOrigins lists origins allowed to call the API.
	CORSOrigins []string `koanf:"cors_origins"`

	// QueueSize bounds the number of scans waiting for a worker.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets how many scans may run at once. Each scan owns its own state.
	WorkerCount int `koanf:"worker_count"`
	// ScanTimeout caps the wall time of one scan. Zero disables the cap.
	ScanTimeout time.Duration `koanf:"scan_timeout"`

	// TemplatePath is the reference lineup card image.
	TemplatePath string `koanf:"template_path"`
	// CaptureDir receives extracted stills.
	CaptureDir string `koanf:"capture_dir"`
	// FrameSkip is the sampling stride: frames with index % FrameSkip == 0 are analyzed.
	FrameSkip int `koanf:"frame_skip"`
	// MatchThreshold is the strict lower bound on correlation for a candidate.
	MatchThreshold float64 `koanf:"match_threshold"`
	ROITop         float64 `koanf:"roi_top"`
	ROIBottom      float64 `koanf:"roi_bottom"`
	ROILeft        float64 `koanf:"roi_left"`
	ROIRight       float64 `koanf:"roi_right"`

	// ProcessSkip is the number of frames discarded after a confirmed roster.
	ProcessSkip int `koanf:"process_skip"`
	// ConfirmThreshold is the occurrence count at which a roster is confirmed.
	ConfirmThreshold int `koanf:"confirm_threshold"`
	// TargetRosters is the number of unique rosters that ends a scan successfully.
	TargetRosters int `koanf:"target_rosters"`
	// CounterSize bounds the per-scan occurrence counter. Zero or less is unbounded.
	CounterSize int `koanf:"counter_size"`

	// RosterSize is the expected number of player names on a card.
	RosterSize int `koanf:"roster_size"`
	// RosterSizePolicy is "exact" or "at_least".
	RosterSizePolicy string `koanf:"roster_size_policy"`
	// NoiseToken is removed once from every token sequence before parsing.
	NoiseToken string `koanf:"noise_token"`

	OCRScale        int      `koanf:"ocr_scale"`
	OCRBinaryCutoff int      `koanf:"ocr_binary_cutoff"`
	OCRGain         float64  `koanf:"ocr_gain"`
	OCRLanguages    []string `koanf:"ocr_languages"`

	// MongoURI enables the MongoDB roster store; empty keeps rosters in memory.
	MongoURI        string        `koanf:"mongo_uri"`
	MongoDatabase   string        `koanf:"mongo_database"`
	MongoCollection string        `koanf:"mongo_collection"`
	MongoTimeout    time.Duration `koanf:"mongo_timeout"`

	// StorageBackend is "s3" (any S3-compatible endpoint) or "local".
	// S3Prefix doubles as the file name prefix for the local backend.
	StorageBackend string `koanf:"storage_backend"`
	S3Endpoint     string `koanf:"s3_endpoint"`
	S3Region       string `koanf:"s3_region"`
	S3AccessKey    string `koanf:"s3_access_key"`
	S3SecretKey    string `koanf:"s3_secret_key"`
	S3Bucket       string `koanf:"s3_bucket"`
	S3Prefix       string `koanf:"s3_prefix"`
	S3UseSSL       bool   `koanf:"s3_use_ssl"`
	LocalVideoDir  string `koanf:"local_video_dir"`
	DownloadDir    string `koanf:"download_dir"`

	// MQTTBroker enables the MQTT event emitter, e.g. "localhost:1883".
	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTTopic    string `koanf:"mqtt_topic"`
	MQTTClientID string `koanf:"mqtt_client_id"`

	// TracingEndpoint is an OTLP/HTTP URL; empty disables tracing.
	TracingEndpoint string `koanf:"tracing_endpoint"`
}

// New creates a Config holding defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":8000",
		CORSOrigins: []string{"*"},

		QueueSize:   16,
		WorkerCount: 1,
		ScanTimeout: 30 * time.Minute,

		TemplatePath:   "./template1.png",
		CaptureDir:     "./captures_team1",
		FrameSkip:      80,
		MatchThreshold: 0.90,
		ROITop:         0.07,
		ROIBottom:      0.92,
		ROILeft:        0.215,
		ROIRight:       0.574,

		ProcessSkip:      400,
		ConfirmThreshold: 2,
		TargetRosters:    2,
		CounterSize:      10_000,

		RosterSize:       11,
		RosterSizePolicy: "exact",
		NoiseToken:       "SUBSTITUTES",

		OCRScale:        9,
		OCRBinaryCutoff: 150,
		OCRGain:         1.5,
		OCRLanguages:    []string{"kor", "eng"},

		MongoDatabase:   "ocr",
		MongoCollection: "prior_data",
		MongoTimeout:    10 * time.Second,

		StorageBackend: StorageLocal,
		S3Endpoint:     "s3.amazonaws.com",
		S3UseSSL:       true,
		LocalVideoDir:  "./videos",
		DownloadDir:    filepath.Join(os.TempDir(), "lineup"),

		MQTTTopic:    "lineup/events",
		MQTTClientID: "lineup-scanner",
	}
}
