// Package s3 stores saved images in an S3 bucket or an S3-compatible service
// such as MinIO. Viewers open entries through presigned GET URLs.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/image-saver/pkg/mediasaver"
)

const (
	DefaultRegion    = "us-east-1"
	DefaultURLExpiry = time.Hour

	EncryptionAES256 = "AES256"
	EncryptionKMS    = "aws:kms"
)

// Config describes the bucket images are saved to.
type Config struct {
	Bucket string
	Region string

	// KeyPrefix namespaces every object key, so one bucket can hold several
	// media indexes.
	KeyPrefix string

	// Static credentials. Empty values fall back to the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint and UsePathStyle target S3-compatible services.
	Endpoint     string
	UsePathStyle bool

	// URLExpiry is the lifetime of presigned view URLs.
	URLExpiry time.Duration

	// Encryption is "", EncryptionAES256 or EncryptionKMS.
	Encryption string
	KMSKeyID   string

	// CreateBucket creates the bucket on startup when it is missing.
	CreateBucket bool
}

// Validate fills defaults and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket name is required")
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.URLExpiry <= 0 {
		c.URLExpiry = DefaultURLExpiry
	}
	switch c.Encryption {
	case "", EncryptionAES256, EncryptionKMS:
	default:
		return fmt.Errorf("unsupported encryption %q (use %s or %s)", c.Encryption, EncryptionAES256, EncryptionKMS)
	}
	c.KeyPrefix = strings.Trim(c.KeyPrefix, "/")
	return nil
}

// Backend is the S3 implementation of mediasaver.BlobStore.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	config   Config
}

// New connects a backend. With CreateBucket set it also ensures the bucket
// exists, which needs network access.
func New(config Config) (mediasaver.BlobStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})

	backend := &Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		config:   config,
	}

	if config.CreateBucket {
		if err := backend.ensureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return backend, nil
}

// key maps an object key to its key in the bucket.
func (b *Backend) key(objectKey string) *string {
	if b.config.KeyPrefix == "" {
		return aws.String(objectKey)
	}
	return aws.String(path.Join(b.config.KeyPrefix, objectKey))
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	bucket := aws.String(b.config.Bucket)
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket})
	if err == nil {
		return nil
	}
	// MinIO answers HEAD on a missing bucket with a bare 400
	if !isNotFound(err) && !strings.Contains(err.Error(), "BadRequest") {
		return fmt.Errorf("failed to check bucket %s: %w", b.config.Bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: bucket}
	// us-east-1 rejects an explicit location constraint
	if b.config.Region != DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil && !hasCode(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
		return fmt.Errorf("failed to create bucket %s: %w", b.config.Bucket, err)
	}
	return nil
}

// hasCode reports whether err carries one of the given S3 API error codes.
func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

// isNotFound matches both the modeled errors and the bare codes some
// S3-compatible services return instead.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}
	return hasCode(err, "NotFound", "NoSuchKey", "NoSuchBucket")
}

// wrap maps S3 errors onto mediasaver errors.
func wrap(op, objectKey string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", mediasaver.ErrObjectNotFound, objectKey)
	}
	return fmt.Errorf("s3 %s %s: %w", op, objectKey, err)
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*mediasaver.ObjectMeta, error) {
	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    b.key(objectKey),
	})
	if err != nil {
		return nil, wrap("head", objectKey, err)
	}

	contentType := aws.ToString(head.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &mediasaver.ObjectMeta{
		Key:         objectKey,
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: contentType,
		UpdatedAt:   aws.ToTime(head.LastModified),
		ETag:        strings.Trim(aws.ToString(head.ETag), "\""),
		Metadata:    head.Metadata,
	}, nil
}

func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	return b.UploadWithParams(ctx, reader, mediasaver.UploadParams{ObjectKey: objectKey})
}

// UploadWithParams streams reader through the multipart uploader, so the
// size does not need to be known up front.
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params mediasaver.UploadParams) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    b.key(params.ObjectKey),
		Body:   reader,
	}
	// image/* is a wildcard, not a storable content type
	if params.MimeType != "" && params.MimeType != mediasaver.DefaultMimeType {
		input.ContentType = aws.String(params.MimeType)
	}
	b.encrypt(input)

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return wrap("put", params.ObjectKey, err)
	}
	return nil
}

func (b *Backend) encrypt(input *s3.PutObjectInput) {
	switch b.config.Encryption {
	case EncryptionAES256:
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case EncryptionKMS:
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.KMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.KMSKeyID)
		}
	}
}

// GetPreviewURL presigns an inline GET valid for URLExpiry.
func (b *Backend) GetPreviewURL(ctx context.Context, objectKey string) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.config.Bucket),
		Key:                        b.key(objectKey),
		ResponseContentDisposition: aws.String("inline"),
	}, s3.WithPresignExpires(b.config.URLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectKey, err)
	}
	return req.URL, nil
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    b.key(objectKey),
	})
	if err != nil {
		return nil, wrap("get", objectKey, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 reports success for missing keys.
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    b.key(objectKey),
	})
	if err != nil {
		return wrap("delete", objectKey, err)
	}
	return nil
}
