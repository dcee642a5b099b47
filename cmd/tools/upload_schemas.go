package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/lychee-technology/facet"
	"github.com/lychee-technology/facet/internal"
)

func runUploadSchemas(args []string) error {
	flags := flag.NewFlagSet("upload-schemas", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: facet-tools upload-schemas [options]")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	schemaDir := flags.String("schema-dir", getenvDefault("SCHEMA_DIR", "./schemas"), "Directory containing schema definition JSON files")
	bucket := flags.String("bucket", getenvDefault("S3_BUCKET", ""), "Target S3 bucket (required)")
	prefix := flags.String("prefix", getenvDefault("S3_PREFIX", "definitions"), "Key prefix for uploaded definitions")
	region := flags.String("region", getenvDefault("S3_REGION", ""), "AWS region")
	endpoint := flags.String("endpoint", getenvDefault("S3_ENDPOINT", ""), "Custom S3 endpoint (e.g. MinIO)")
	createBucket := flags.Bool("create-bucket", false, "Create the bucket if it does not exist")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *bucket == "" {
		return fmt.Errorf("-bucket is required")
	}

	files, err := listDefinitionFiles(*schemaDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no definition files found in %s", *schemaDir)
	}

	ctx := context.Background()
	client, err := internal.NewS3Client(ctx, facet.S3Config{
		Region:   *region,
		Bucket:   *bucket,
		Prefix:   *prefix,
		Endpoint: *endpoint,
	})
	if err != nil {
		return err
	}

	if *createBucket {
		if err := ensureBucket(ctx, client, *bucket); err != nil {
			return err
		}
	}

	uploader := manager.NewUploader(client)
	keyPrefix := strings.TrimSuffix(*prefix, "/")
	for _, file := range files {
		path := filepath.Join(*schemaDir, file)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if verr := internal.ValidateDefinitionDocument(file, data); verr != nil {
			return fmt.Errorf("definition %s invalid: %w", file, verr)
		}

		key := file
		if keyPrefix != "" {
			key = keyPrefix + "/" + file
		}
		if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(*bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		fmt.Printf("Uploaded s3://%s/%s\n", *bucket, key)
	}

	fmt.Printf("Uploaded %d definitions.\n", len(files))
	return nil
}

func ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	if _, cerr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); cerr != nil {
		var apiErr smithy.APIError
		if errors.As(cerr, &apiErr) {
			code := apiErr.ErrorCode()
			if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket: %w", cerr)
			}
			return nil
		}
		return fmt.Errorf("create bucket: %w", cerr)
	}
	fmt.Printf("Created bucket %s\n", bucket)
	return nil
}
