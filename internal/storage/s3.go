package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"starboard-bot/internal/starboard"
)

// S3Store keeps the config list as one JSON object in a bucket. Works against
// AWS S3 or any compatible endpoint (R2, MinIO) via a custom base endpoint.
type S3Store struct {
	client *s3.Client
	bucket string
	key    string
}

type S3Config struct {
	Endpoint string
	Bucket   string
	Key      string
	Region   string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	key := cfg.Key
	if key == "" {
		key = "starboards.json"
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		key:    key,
	}, nil
}

func (s *S3Store) Load(ctx context.Context) ([]starboard.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			if err := s.SaveAll(ctx, nil); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, fmt.Errorf("load starboard object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("load starboard object: %w", err)
	}

	var configs []starboard.Config
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, &starboard.StorageFormatError{Source: "s3://" + s.bucket + "/" + s.key, Err: err}
	}
	return configs, nil
}

func (s *S3Store) SaveAll(ctx context.Context, configs []starboard.Config) error {
	if configs == nil {
		configs = []starboard.Config{}
	}

	data, err := json.Marshal(configs)
	if err != nil {
		return fmt.Errorf("encode starboard object: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("save starboard object: %w", err)
	}
	return nil
}
