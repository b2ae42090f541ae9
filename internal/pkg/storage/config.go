package storage

import (
	"errors"
	"fmt"

	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
)

// Config holds object storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
	}

	if config.AccessKeyID == "" {
		return nil, errors.New("S3_ACCESS_KEY_ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("S3_SECRET_ACCESS_KEY is required")
	}
	if config.BucketName == "" {
		return nil, errors.New("S3_BUCKET_NAME is required")
	}

	return config, nil
}

// OutputKey generates the deterministic object key a finished conversion is
// written under by the inference service. The result handler derives the
// output location from the conversion id alone, so both sides agree without
// coordination.
func OutputKey(conversionUUID, format string) string {
	if format == "" {
		format = "wav"
	}
	return fmt.Sprintf("conversions/%s/output.%s", conversionUUID, format)
}
