// Package mirror copies finished downloads to an S3-compatible bucket.
package mirror

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Config selects the destination bucket.
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // custom endpoint, e.g. MinIO
}

// putter is the subset of *s3.Client used here.
type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Mirror uploads files to a bucket. It satisfies download.Uploader.
type Mirror struct {
	client putter
	bucket string
	prefix string
	logger zerolog.Logger
}

// New builds a Mirror from the default AWS credential chain.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Mirror, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror bucket cannot be empty")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newWithClient(client, cfg, logger), nil
}

func newWithClient(client putter, cfg Config, logger zerolog.Logger) *Mirror {
	return &Mirror{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With().Str("component", "mirror").Str("bucket", cfg.Bucket).Logger(),
	}
}

// Key returns the object key a local file is stored under.
func (m *Mirror) Key(filename string) string {
	if m.prefix == "" {
		return filename
	}
	return path.Join(m.prefix, filename)
}

// Upload stores the file at localPath under Key(basename).
func (m *Mirror) Upload(ctx context.Context, localPath string) error {
	start := time.Now()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	name := filepath.Base(localPath)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.Key(name)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := m.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}

	m.logger.Info().
		Str("key", m.Key(name)).
		Int64("size_bytes", info.Size()).
		Dur("duration", time.Since(start)).
		Msg("file mirrored")
	return nil
}
