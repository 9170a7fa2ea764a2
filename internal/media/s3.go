package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	cfg "videotube/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	FolderAvatars     = "avatars"
	FolderCoverImages = "cover-images"
)

var ErrForeignURL = errors.New("url does not belong to the media bucket")

// File is an upload handed over by the transport layer.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type S3Storage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func NewS3Storage(ctx context.Context, c cfg.Storage) (*S3Storage, error) {
	const op = "media.NewS3Storage"

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return NewS3StorageWithClient(client, c.Bucket, publicBase(c)), nil
}

func NewS3StorageWithClient(client *s3.Client, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func publicBase(c cfg.Storage) string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
}

// ObjectKey builds a fresh key under folder, keeping the original extension.
func ObjectKey(folder, filename string) string {
	return path.Join(folder, uuid.NewString()+strings.ToLower(path.Ext(filename)))
}

// Upload stores the file under folder and returns its public URL.
func (s *S3Storage) Upload(ctx context.Context, folder string, file *File) (string, error) {
	const op = "media.Upload"

	key := ObjectKey(folder, file.Name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file.Body,
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}
	if file.Size > 0 {
		input.ContentLength = aws.Int64(file.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return s.publicBaseURL + "/" + key, nil
}

// Delete removes the object behind a URL previously returned by Upload.
func (s *S3Storage) Delete(ctx context.Context, url string) error {
	const op = "media.Delete"

	key, ok := strings.CutPrefix(url, s.publicBaseURL+"/")
	if !ok || key == "" {
		return fmt.Errorf("%s: %w", op, ErrForeignURL)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
