// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds runtime settings for the contact tracing server.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the public gRPC endpoint.
//   - MetricsAddr: bind address of the Prometheus /metrics endpoint. Empty disables it.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps all data in memory.
//   - SecretKey: HMAC secret for signing MFA tokens (HS256). Do not use test defaults in prod.
//   - TokenValidity: MFA token lifetime.
//   - HashIDSalt / HashIDMinLength: parameters of the external id encoder.
//   - FirebaseURL / FirebaseServerKey / FirebaseSenderID: push delivery. Empty URL logs pushes instead.
//   - S3AccessKey / S3SecretKey / S3Bucket / S3Region / S3BaseEndpoint: export storage.
//     Empty bucket keeps exports in memory.
//   - ExportURLExpiry: lifetime of presigned export download links.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	EndpointAddrGRPC  string        `env:"CT_GRPC_ADDR"`
	MetricsAddr       string        `env:"CT_METRICS_ADDR"`
	DatabaseDSN       string        `env:"CT_DATABASE_DSN"`
	SecretKey         string        `env:"CT_SECRET_KEY"`
	TokenValidity     time.Duration `env:"CT_TOKEN_VALIDITY"`
	HashIDSalt        string        `env:"CT_HASHID_SALT"`
	HashIDMinLength   int           `env:"CT_HASHID_MIN_LENGTH"`
	FirebaseURL       string        `env:"CT_FIREBASE_URL"`
	FirebaseServerKey string        `env:"CT_FIREBASE_SERVER_KEY"`
	FirebaseSenderID  string        `env:"CT_FIREBASE_SENDER_ID"`
	S3AccessKey       string        `env:"CT_S3_ACCESS_KEY"`
	S3SecretKey       string        `env:"CT_S3_SECRET_KEY"`
	S3Bucket          string        `env:"CT_S3_BUCKET"`
	S3Region          string        `env:"CT_S3_REGION"`
	S3BaseEndpoint    string        `env:"CT_S3_BASE_ENDPOINT"`
	ExportURLExpiry   time.Duration `env:"CT_EXPORT_URL_EXPIRY"`
	LogLevel          string        `env:"CT_LOG_LEVEL"`
}

// maxPresignExpiry is the longest lifetime S3 accepts for a presigned URL.
const maxPresignExpiry = 7 * 24 * time.Hour

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.MetricsAddr = ":9090"
	c.SecretKey = "secretKey"
	c.TokenValidity = 5 * time.Minute
	c.HashIDSalt = "contacttrace"
	c.HashIDMinLength = 8
	c.S3Region = "us-east-1"
	c.ExportURLExpiry = 15 * time.Minute
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
// The result is validated before it is returned.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	args := os.Args[1:]
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.EndpointAddrGRPC == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.TokenValidity <= 0 {
		errs = append(errs, fmt.Errorf("token validity must be positive, got %s", c.TokenValidity))
	}
	if c.HashIDMinLength < 0 {
		errs = append(errs, fmt.Errorf("hashid min length must not be negative, got %d", c.HashIDMinLength))
	}
	if c.FirebaseURL != "" && c.FirebaseServerKey == "" {
		errs = append(errs, errors.New("firebase server key is required when firebase url is set"))
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		errs = append(errs, errors.New("s3 region is required when s3 bucket is set"))
	}
	if c.ExportURLExpiry <= 0 || c.ExportURLExpiry > maxPresignExpiry {
		errs = append(errs, fmt.Errorf("export url expiry must be in (0, %s], got %s", maxPresignExpiry, c.ExportURLExpiry))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// UsesPostgres reports whether repositories are backed by PostgreSQL.
func (c *Config) UsesPostgres() bool { return c.DatabaseDSN != "" }

// UsesS3 reports whether exports go to S3-compatible storage.
func (c *Config) UsesS3() bool { return c.S3Bucket != "" }
