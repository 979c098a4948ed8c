package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/contacttrace/internal/flagx"
	"github.com/dmitrijs2005/contacttrace/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Duration fields use timex.Duration, which accepts both strings such as "1m"
// and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC  string         `json:"endpoint_addr_grpc"`
	MetricsAddr       string         `json:"metrics_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	TokenValidity     timex.Duration `json:"token_validity"`
	HashIDSalt        string         `json:"hashid_salt"`
	HashIDMinLength   int            `json:"hashid_min_length"`
	FirebaseURL       string         `json:"firebase_url"`
	FirebaseServerKey string         `json:"firebase_server_key"`
	FirebaseSenderID  string         `json:"firebase_sender_id"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	ExportURLExpiry   timex.Duration `json:"export_url_expiry"`
	LogLevel          string         `json:"log_level"`
}

// parseJson loads the file named by -c or -config, if any. Keys missing from
// the file keep their current value.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.MetricsAddr = c.MetricsAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidity = c.TokenValidity.Duration
	config.HashIDSalt = c.HashIDSalt
	config.HashIDMinLength = c.HashIDMinLength
	config.FirebaseURL = c.FirebaseURL
	config.FirebaseServerKey = c.FirebaseServerKey
	config.FirebaseSenderID = c.FirebaseSenderID
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.ExportURLExpiry = c.ExportURLExpiry.Duration
	config.LogLevel = c.LogLevel
	return nil
}

func toJson(config *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:  config.EndpointAddrGRPC,
		MetricsAddr:       config.MetricsAddr,
		DatabaseDSN:       config.DatabaseDSN,
		SecretKey:         config.SecretKey,
		TokenValidity:     timex.Duration{Duration: config.TokenValidity},
		HashIDSalt:        config.HashIDSalt,
		HashIDMinLength:   config.HashIDMinLength,
		FirebaseURL:       config.FirebaseURL,
		FirebaseServerKey: config.FirebaseServerKey,
		FirebaseSenderID:  config.FirebaseSenderID,
		S3AccessKey:       config.S3AccessKey,
		S3SecretKey:       config.S3SecretKey,
		S3Bucket:          config.S3Bucket,
		S3Region:          config.S3Region,
		S3BaseEndpoint:    config.S3BaseEndpoint,
		ExportURLExpiry:   timex.Duration{Duration: config.ExportURLExpiry},
		LogLevel:          config.LogLevel,
	}
}
