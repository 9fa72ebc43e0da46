package file

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client defines the interface for S3 operations used by S3Storage.
type S3Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3ListObjectsV2Paginator defines the interface for paginated list operations.
type S3ListObjectsV2Paginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// PaginatorFactory builds a paginator for a list request.
type PaginatorFactory func(client S3Client, params *s3.ListObjectsV2Input) S3ListObjectsV2Paginator

// S3Storage implements Storage on Amazon S3 and S3-compatible services.
// Every key maps to the object <prefix>/<key>/<fileName>; a "directory" is
// the set of objects sharing the <prefix>/<key>/ prefix.
type S3Storage struct {
	client           S3Client
	bucket           string
	prefix           string
	fileName         string
	paginatorFactory PaginatorFactory
}

// S3Config contains configuration for S3 storage.
type S3Config struct {
	Bucket         string `env:"SESSION_FOLDER_S3_BUCKET" yaml:"bucket"`
	Region         string `env:"SESSION_FOLDER_S3_REGION" envDefault:"us-east-1" yaml:"region"`
	Prefix         string `env:"SESSION_FOLDER_S3_PREFIX" envDefault:"sessions" yaml:"prefix"`
	AccessKeyID    string `env:"SESSION_FOLDER_S3_ACCESS_KEY_ID" yaml:"access_key_id"`
	SecretKey      string `env:"SESSION_FOLDER_S3_SECRET_KEY" yaml:"secret_key"`
	Endpoint       string `env:"SESSION_FOLDER_S3_ENDPOINT" yaml:"endpoint"` // Optional: for S3-compatible services
	ForcePathStyle bool   `env:"SESSION_FOLDER_S3_FORCE_PATH_STYLE" envDefault:"false" yaml:"force_path_style"`
	FileName       string `env:"SESSION_FOLDER_FILE_NAME" envDefault:"session-info" yaml:"file_name"`
}

// S3Option configures NewS3Storage.
type S3Option func(*s3Options)

type s3Options struct {
	httpClient    *http.Client
	client        S3Client
	loadOptions   []func(*config.LoadOptions) error
	clientOptions []func(*s3.Options)
	paginators    PaginatorFactory
}

// WithS3Client uses client instead of building one from S3Config.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) { o.client = client }
}

func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) { o.httpClient = client }
}

// WithS3ConfigOption appends an option for config.LoadDefaultConfig.
func WithS3ConfigOption(option func(*config.LoadOptions) error) S3Option {
	return func(o *s3Options) { o.loadOptions = append(o.loadOptions, option) }
}

// WithS3ClientOption appends an option for s3.NewFromConfig.
func WithS3ClientOption(option func(*s3.Options)) S3Option {
	return func(o *s3Options) { o.clientOptions = append(o.clientOptions, option) }
}

// WithPaginatorFactory overrides how list paginators are built.
// Required when WithS3Client is given something other than *s3.Client.
func WithPaginatorFactory(factory PaginatorFactory) S3Option {
	return func(o *s3Options) { o.paginators = factory }
}

// NewS3Storage returns a Storage backed by cfg.Bucket. The bucket is not
// contacted until Init.
func NewS3Storage(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("%w: bucket and region are required", ErrInvalidConfig)
	}

	fileName := cmp.Or(cfg.FileName, DefaultFileName)
	if err := validateKey(fileName); err != nil {
		return nil, fmt.Errorf("%w: record file name: %v", ErrInvalidConfig, err)
	}

	var o s3Options
	for _, opt := range opts {
		opt(&o)
	}

	client := o.client
	if client == nil {
		c, err := newS3Client(ctx, cfg, o)
		if err != nil {
			return nil, err
		}
		client = c
	}

	paginators := o.paginators
	if paginators == nil {
		paginators = defaultPaginator
	}

	return &S3Storage{
		client:           client,
		bucket:           cfg.Bucket,
		prefix:           strings.Trim(cfg.Prefix, "/"),
		fileName:         fileName,
		paginatorFactory: paginators,
	}, nil
}

func newS3Client(ctx context.Context, cfg S3Config, o s3Options) (*s3.Client, error) {
	load := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")
		load = append(load, config.WithCredentialsProvider(creds))
	}
	if o.httpClient != nil {
		load = append(load, config.WithHTTPClient(o.httpClient))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, append(load, o.loadOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: aws config: %v", ErrInvalidConfig, err)
	}

	return s3.NewFromConfig(awsCfg, func(so *s3.Options) {
		if cfg.Endpoint != "" {
			so.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		so.UsePathStyle = cfg.ForcePathStyle
		for _, opt := range o.clientOptions {
			opt(so)
		}
	}), nil
}

func defaultPaginator(c S3Client, params *s3.ListObjectsV2Input) S3ListObjectsV2Paginator {
	if client, ok := c.(*s3.Client); ok {
		return s3.NewListObjectsV2Paginator(client, params)
	}
	return nil
}

// Init checks that the bucket is reachable.
func (s *S3Storage) Init(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("%w: bucket %s: %v", ErrInit, s.bucket, err)
	}
	return nil
}

// Exists reports whether the record object of key is present.
func (s *S3Storage) Exists(ctx context.Context, key string) bool {
	if validateKey(key) != nil {
		return false
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.recordKey(key)),
	})
	return err == nil
}

// Read downloads the record object of key.
func (s *S3Storage) Read(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.recordKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}
	return data, nil
}

// Write uploads data as the record object of key. A single PutObject is
// atomic, so no temporary object is needed.
func (s *S3Storage) Write(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.recordKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	return nil
}

// Remove deletes every object under the prefix of key.
func (s *S3Storage) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	objects, err := s.collect(ctx, s.dirPrefix(key))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToRemoveDirectory, err)
	}

	ids := make([]types.ObjectIdentifier, 0, len(objects))
	for _, obj := range objects {
		ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
	}

	for i := 0; i < len(ids); i += 1000 {
		end := min(i+1000, len(ids))
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: ids[i:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToRemoveDirectory, err)
		}
	}

	return nil
}

// List returns the key of every "directory" directly under the prefix.
func (s *S3Storage) List(ctx context.Context) ([]string, error) {
	base := s.rootPrefix()

	paginator := s.paginatorFactory(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(base),
		Delimiter: aws.String("/"),
	})
	if paginator == nil {
		return nil, fmt.Errorf("%w: paginator factory returned nil", ErrFailedToReadDirectory)
	}

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToReadDirectory, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), base), "/")
			if validateKey(name) != nil {
				continue
			}
			keys = append(keys, name)
		}
	}

	return keys, nil
}

// Files returns every object under the prefix of key except the record object.
func (s *S3Storage) Files(ctx context.Context, key string) ([]Entry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	dir := s.dirPrefix(key)
	objects, err := s.collect(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadDirectory, err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, key)
	}

	entries := make([]Entry, 0, len(objects))
	for _, obj := range objects {
		name := strings.TrimPrefix(aws.ToString(obj.Key), dir)
		if name == "" || name == s.fileName {
			continue
		}
		entries = append(entries, Entry{
			Name: name,
			Path: path.Join(key, name),
			Size: aws.ToInt64(obj.Size),
		})
	}

	return entries, nil
}

// collect lists every object under prefix, following pagination.
func (s *S3Storage) collect(ctx context.Context, prefix string) ([]types.Object, error) {
	paginator := s.paginatorFactory(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if paginator == nil {
		return nil, errors.New("paginator factory returned nil")
	}

	var objects []types.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		objects = append(objects, page.Contents...)
	}
	return objects, nil
}

func (s *S3Storage) rootPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

func (s *S3Storage) dirPrefix(key string) string {
	return s.rootPrefix() + key + "/"
}

func (s *S3Storage) recordKey(key string) string {
	return s.dirPrefix(key) + s.fileName
}

// isNotFound reports whether err is a missing-object response.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
