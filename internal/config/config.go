// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Env holds the configuration values for the application. It is built once at
// process start and passed by reference into every handler.
type Env struct {
	Region string `env:"AWS_REGION" env-default:"eu-central-1"`
	Bucket string `env:"S3_BUCKET"`
	Table  string `env:"DDB_TABLE"`

	// EnrichQueueURL is the SQS queue carrying avatar enrichment jobs.
	EnrichQueueURL string `env:"ENRICH_QUEUE_URL"`

	// PublicBaseURL overrides the default S3 URL base for stored blobs,
	// e.g. a CDN distribution. Empty means the bucket's virtual-hosted URL.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	// Image analysis service (caption generation).
	VisionEndpoint string        `env:"VISION_ENDPOINT"`
	VisionKey      string        `env:"VISION_API_KEY"`
	VisionTimeout  time.Duration `env:"VISION_TIMEOUT" env-default:"10s"`

	ThumbSize  int           `env:"THUMB_SIZE" env-default:"128"`
	PresignTTL time.Duration `env:"PRESIGN_TTL" env-default:"5m"`

	DevBypassAuth bool `env:"DEV_BYPASS_AUTH" env-default:"false"`
}

// MustLoad reads the environment variables and returns an Env struct.
// Missing required values are a deployment error and panic on startup.
func MustLoad() Env {
	var e Env
	if err := cleanenv.ReadEnv(&e); err != nil {
		panic(fmt.Errorf("read env: %w", err))
	}
	if e.Bucket == "" {
		panic(fmt.Errorf("missing env S3_BUCKET"))
	}
	if e.Table == "" {
		panic(fmt.Errorf("missing env DDB_TABLE"))
	}
	return e
}
