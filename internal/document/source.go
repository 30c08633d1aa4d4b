package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Source fetches raw document bytes.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Describe() string
}

// FileSource reads a document from the local filesystem.
type FileSource struct {
	Path string
}

// NewFileSource returns a source for an absolute, cleaned version of path.
func NewFileSource(path string) *FileSource {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &FileSource{Path: filepath.Clean(path)}
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("document: %s: %w", s.Path, ErrNotFound)
		}
		return nil, fmt.Errorf("document: read %s: %w", s.Path, err)
	}
	return data, nil
}

func (s *FileSource) Describe() string { return s.Path }

type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a document from an S3 bucket.
type S3Source struct {
	client s3GetObjectAPI
	Bucket string
	Key    string
}

// NewS3Source builds a source for s3://bucket/key.
func NewS3Source(client s3GetObjectAPI, uri string) (*S3Source, error) {
	if client == nil {
		return nil, errors.New("document: s3 client cannot be nil")
	}
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	return &S3Source{client: client, Bucket: bucket, Key: key}, nil
}

func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("document: %s: %w", s.Describe(), ErrNotFound)
		}
		return nil, fmt.Errorf("document: get %s: %w", s.Describe(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", s.Describe(), err)
	}
	return data, nil
}

func (s *S3Source) Describe() string { return "s3://" + s.Bucket + "/" + s.Key }

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "s3://")
	if !ok {
		return "", "", fmt.Errorf("document: %q is not an s3:// uri", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("document: %q must name a bucket and key", uri)
	}
	return bucket, key, nil
}

// Loader fetches a document and extracts its text on every call.
type Loader struct {
	source Source
}

// NewLoader creates a loader for source.
func NewLoader(source Source) *Loader {
	if source == nil {
		panic("document: source cannot be nil")
	}
	return &Loader{source: source}
}

// Load returns the whitespace-normalized text of the document.
func (l *Loader) Load(ctx context.Context) (string, error) {
	data, err := l.source.Fetch(ctx)
	if err != nil {
		return "", err
	}
	text, err := ExtractText(data)
	if err != nil {
		return "", fmt.Errorf("document: extract %s: %w", l.source.Describe(), err)
	}
	return text, nil
}

// Describe names the underlying source for logs.
func (l *Loader) Describe() string { return l.source.Describe() }
