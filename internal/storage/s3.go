package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// NewS3Client builds a client for AWS or any S3-compatible endpoint.
func NewS3Client(opts S3Options) (*s3.S3, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	cfg := &aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(opts.Endpoint != ""),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return s3.New(sess), nil
}

// S3Mirror writes every photo to the local upload dir first and then copies
// it to a bucket. A photo only counts as saved once both copies exist.
type S3Mirror struct {
	Local  *Disk
	Client s3iface.S3API
	Bucket string
	Prefix string
}

func (m *S3Mirror) key(name string) string {
	return path.Join(m.Prefix, name)
}

func (m *S3Mirror) Save(ctx context.Context, name string, src io.Reader, contentType string) error {
	if err := m.Local.Save(ctx, name, src, contentType); err != nil {
		return err
	}

	f, err := m.Local.Open(name)
	if err != nil {
		_ = m.Local.Remove(ctx, name)
		return err
	}
	defer f.Close()

	_, err = m.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.Bucket),
		Key:         aws.String(m.key(name)),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		_ = m.Local.Remove(ctx, name)
		return fmt.Errorf("unable to upload %s to s3: %w", name, err)
	}
	return nil
}

func (m *S3Mirror) Remove(ctx context.Context, name string) error {
	if err := m.Local.Remove(ctx, name); err != nil {
		return err
	}
	_, err := m.Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(m.key(name)),
	})
	if err != nil {
		return fmt.Errorf("unable to delete %s from s3: %w", name, err)
	}
	return nil
}
