// Package export stores contact exports in S3-compatible object storage and
// hands out time-limited download links for them.
package export

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/netx"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3Config locates the bucket exports are written to.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
	URLExpiry    time.Duration
}

// S3Store uploads through presigned PUT requests, so the server never needs
// more than presign rights on the bucket.
type S3Store struct {
	cfg    S3Config
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	presign *s3.PresignClient
}

func NewS3Store(cfg S3Config, client *http.Client) *S3Store {
	return &S3Store{cfg: cfg, client: client, now: time.Now}
}

// getPresignClient builds the presign client on first use. A failed attempt
// is not remembered; the next call tries again.
func (s *S3Store) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presign != nil {
		return s.presign, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.AccessKey,
			s.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}
	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	s.presign = newS3PresignClient(client)
	return s.presign, nil
}

// ObjectKey names a new export object for a partition.
func ObjectKey(partitionKey string, at time.Time) string {
	return fmt.Sprintf("exports/%s/%d/%02d/%02d/%v.json", partitionKey, at.Year(), at.Month(), at.Day(), uuid.New())
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body []byte) error {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return common.Unavailable("export: s3 config", err)
	}
	bucket := s.cfg.Bucket
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(s.cfg.URLExpiry))
	if err != nil {
		return common.Unavailable("export: presign put", err)
	}
	if err := netx.UploadToPresignedURL(ctx, s.client, req.URL, contentType, body); err != nil {
		return common.Unavailable("export: upload", err)
	}
	return nil
}

// PresignGet returns a download URL for key and the time it stops working.
func (s *S3Store) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", time.Time{}, common.Unavailable("export: s3 config", err)
	}
	bucket := s.cfg.Bucket
	issued := s.now()
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.cfg.URLExpiry))
	if err != nil {
		return "", time.Time{}, common.Unavailable("export: presign get", err)
	}
	return req.URL, issued.Add(s.cfg.URLExpiry), nil
}
