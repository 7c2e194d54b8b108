// Package blob archiva snapshots de mercados en un bucket S3 o compatible
// (MinIO, R2, iDrive e2).
package blob

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Config de conexión al bucket. Endpoint vacío = AWS estándar.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Prefix         string
	ForcePathStyle bool
}

// Archiver implementa ports.Archiver con PutObject.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ ports.Archiver = (*Archiver)(nil)

// New crea el cliente. Sin access key usa la cadena de credenciales por defecto.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob.New: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blob.New: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put sube body como JSON bajo prefix/key.
func (a *Archiver) Put(ctx context.Context, key string, body []byte) error {
	full := key
	if a.prefix != "" {
		full = path.Join(a.prefix, key)
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(full),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("blob.Put: put object %s: %w", full, err)
	}
	return nil
}
