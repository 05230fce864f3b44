package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/gabriel-vasile/mimetype"

	"fileconverter/config"
)

// S3 stores blobs in a single bucket, keyed the same way as Local.
// Get downloads into a scratch directory so callers always work with
// local paths regardless of the configured backend.
type S3 struct {
	client     *s3.S3
	bucket     string
	downloader *s3manager.Downloader
	uploader   *s3manager.Uploader
	scratchDir string
}

func NewS3(cfg *config.Config) (*S3, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.S3Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		),
	}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
	}
	if cfg.S3UsePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	scratch := filepath.Join(cfg.TempDir, "s3-scratch")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, err
	}

	return &S3{
		client:     s3.New(sess),
		bucket:     cfg.S3Bucket,
		downloader: s3manager.NewDownloader(sess),
		uploader:   s3manager.NewUploader(sess),
		scratchDir: scratch,
	}, nil
}

func (s *S3) Put(ctx context.Context, localPath, key string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

func (s *S3) Get(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(s.scratchDir, filepath.Base(key))

	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	_, err = s.downloader.DownloadWithContext(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		os.Remove(localPath)
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to download from S3: %w", err)
	}
	return localPath, nil
}

func (s *S3) Delete(ctx context.Context, key string) bool {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err == nil
}

func (s *S3) Usage(ctx context.Context) (Usage, error) {
	var usage Usage
	err := s.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				usage.Bytes += aws.Int64Value(obj.Size)
				usage.FileCount++
			}
			return true
		})
	if err != nil {
		return Usage{}, fmt.Errorf("failed to list bucket: %w", err)
	}
	return usage, nil
}

func (s *S3) Sweep(ctx context.Context, area string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	deleted := 0

	err := s.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(area + "/"),
		},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
					continue
				}
				if s.Delete(ctx, aws.StringValue(obj.Key)) {
					deleted++
				}
			}
			return true
		})
	if err != nil {
		return deleted, fmt.Errorf("failed to list bucket: %w", err)
	}
	return deleted, nil
}
