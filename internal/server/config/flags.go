package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/contacttrace/internal/flagx"
)

var knownFlags = []string{"-a", "-m", "-d", "-s", "-t", "-x", "-n", "-f", "-k", "-i", "-u", "-p", "-b", "-g", "-e", "-w", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      MFA token validity, minutes
//	-x string   hashid salt
//	-n int      hashid minimum length
//	-f string   Firebase send URL
//	-k string   Firebase server key
//	-i string   Firebase sender id
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w int      export URL expiry, minutes
//	-l string   log level
//
// Only the flags above are parsed; flagx.FilterArgs drops the rest so other
// flag sets on the same command line do not collide.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port of the metrics endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenValidity := fs.Int("t", int(config.TokenValidity.Minutes()), "token validity (in minutes)")
	fs.StringVar(&config.HashIDSalt, "x", config.HashIDSalt, "hashid salt")
	fs.IntVar(&config.HashIDMinLength, "n", config.HashIDMinLength, "hashid minimum length")
	fs.StringVar(&config.FirebaseURL, "f", config.FirebaseURL, "Firebase send URL")
	fs.StringVar(&config.FirebaseServerKey, "k", config.FirebaseServerKey, "Firebase server key")
	fs.StringVar(&config.FirebaseSenderID, "i", config.FirebaseSenderID, "Firebase sender id")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	exportExpiry := fs.Int("w", int(config.ExportURLExpiry.Minutes()), "export URL expiry (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// Minute flags only override when given, so sub-minute values from
	// earlier layers survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenValidity = time.Duration(*tokenValidity) * time.Minute
		case "w":
			config.ExportURLExpiry = time.Duration(*exportExpiry) * time.Minute
		}
	})
	return nil
}
