package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "thetaflow/config"
	"thetaflow/logger"
)

// s3Mirror copies every parquet file landed locally to an S3 bucket under
// the same relative key. Mirror failures are logged but never block local
// persistence.
type s3Mirror struct {
	client *s3.Client
	bucket string
	log    *logger.Log
}

func newS3Mirror(cfg *appconfig.Config) (*s3Mirror, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Storage.S3.Region)}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_mirror").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("s3_mirror").WithFields(logger.Fields{
		"region": cfg.Storage.S3.Region,
		"bucket": cfg.Storage.S3.Bucket,
	}).Debug("s3 mirror initialized")

	return &s3Mirror{
		client: client,
		bucket: cfg.Storage.S3.Bucket,
		log:    log,
	}, nil
}

func (m *s3Mirror) upload(path string, data []byte) error {
	key := filepath.ToSlash(path)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	logger.IncrementS3Mirror(int64(len(data)))
	m.log.WithComponent("s3_mirror").WithFields(logger.Fields{
		"key":  key,
		"size": len(data),
	}).Debug("mirrored file to s3")

	return nil
}
