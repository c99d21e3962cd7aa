package publish

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client used by S3Publisher.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads assets to a bucket.
type S3Publisher struct {
	client PutObjectAPI
	bucket string
}

// NewS3Publisher wraps an existing client.
func NewS3Publisher(client PutObjectAPI, bucket string) *S3Publisher {
	return &S3Publisher{client: client, bucket: bucket}
}

// OpenS3 loads the default AWS credential chain for region.
func OpenS3(ctx context.Context, bucket, region string) (*S3Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3Publisher(s3.NewFromConfig(cfg), bucket), nil
}

// Upload stores localPath at folder/filename and returns the key.
func (p *S3Publisher) Upload(ctx context.Context, localPath, folder, filename string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(folder, filename)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", p.bucket, key, err)
	}
	return key, nil
}

func contentType(filename string) string {
	switch path.Ext(filename) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
