package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source is where the catalog document comes from.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// FileSource reads the catalog from a local file.
type FileSource struct {
	Path string
}

func (f FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	return os.Open(filepath.Clean(f.Path))
}

func (f FileSource) String() string {
	return f.Path
}

// S3Client is the subset of the S3 API the catalog needs.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the catalog from an S3 object.
type S3Source struct {
	Client S3Client
	Bucket string
	Key    string
}

func (s S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (s S3Source) String() string {
	return "s3://" + s.Bucket + "/" + s.Key
}

// ParseSource turns a CATALOG_SOURCE value into a Source. Values of the form
// s3://bucket/key are read from S3 using the default AWS credential chain;
// anything else is a local path.
func ParseSource(ctx context.Context, raw, region string) (Source, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		if raw == "" {
			return nil, fmt.Errorf("empty catalog source")
		}
		return FileSource{Path: raw}, nil
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid S3 catalog source %q, want s3://bucket/key", raw)
	}

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return S3Source{Client: s3.NewFromConfig(cfg), Bucket: bucket, Key: key}, nil
}
