package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lychee-technology/facet"
	"go.uber.org/zap"
)

// S3SchemaSource loads definition documents from *.json objects under a
// bucket prefix.
type S3SchemaSource struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3SchemaSource creates an object-store-backed schema source.
func NewS3SchemaSource(client *s3.Client, bucket, prefix string) *S3SchemaSource {
	return &S3SchemaSource{client: client, bucket: bucket, prefix: prefix}
}

// Name identifies the source in logs and errors.
func (s *S3SchemaSource) Name() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// Load lists every *.json object under the prefix and parses each one.
// Object listing order is lexicographic, so repeated loads are deterministic.
func (s *S3SchemaSource) Load(ctx context.Context) ([]*facet.SchemaDefinition, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, facet.NewSourceUnavailableError(s.Name(), "failed to list definition objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, ".json") {
				keys = append(keys, key)
			}
		}
	}

	if len(keys) == 0 {
		return nil, facet.NewSourceUnavailableError(s.Name(), "no definition objects found under prefix", nil)
	}

	definitionErrors := facet.NewDefinitionErrors()
	definitions := make([]*facet.SchemaDefinition, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, s.prefix)
		data, err := s.fetchObject(ctx, key)
		if err != nil {
			definitionErrors.Add(name,
				facet.NewDefinitionInvalidError(name, "failed to fetch definition object").WithCause(err))
			continue
		}
		def, ferr := parseValidatedDefinition(name, data)
		if ferr != nil {
			definitionErrors.Add(name, ferr)
			continue
		}
		definitions = append(definitions, def)
		zap.S().Debugw("loaded schema definition", "key", key, "typeKey", def.TypeKey)
	}

	if definitionErrors.HasErrors() {
		return nil, definitionErrors.ToError()
	}
	return definitions, nil
}

func (s *S3SchemaSource) fetchObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// NewS3Client builds an S3 client from config. Static credentials from the
// environment take precedence over the default chain; a custom endpoint
// (MinIO and friends) switches the client to path-style addressing.
func NewS3Client(ctx context.Context, cfg facet.S3Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if envKey := os.Getenv("AWS_ACCESS_KEY_ID"); envKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(envKey, os.Getenv("AWS_SECRET_ACCESS_KEY"), "")))
	}
	if cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})
	return client, nil
}
