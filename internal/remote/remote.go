// Package remote offloads catalog manifests to S3-compatible storage.
package remote

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"

	"hlb/internal/config"
	"hlb/internal/crypto"
)

type ObjectInfo struct {
	Size   int64
	Blake3 string
}

type Backend interface {
	Upload(ctx context.Context, body io.Reader, remotePath, checksumHash string) error
	Head(ctx context.Context, remotePath string) (*ObjectInfo, error)
	VerifyCredentials(ctx context.Context) error
}

type S3 struct {
	client       *s3.Client
	uploader     *manager.Uploader
	bucket       string
	prefix       string
	storageClass types.StorageClass
	logger       *slog.Logger
}

var _ Backend = (*S3)(nil)

// NewS3 builds a client from the s3 section of the config.
func NewS3(ctx context.Context, cfg config.S3Config, maxRetryAttempts int, logger *slog.Logger) (*S3, error) {
	if cfg.StorageClass == "" {
		return nil, errors.New("storage class must be specified")
	}

	configOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if maxRetryAttempts > 0 {
		configOpts = append(configOpts,
			awsconfig.WithRetryMaxAttempts(maxRetryAttempts),
			awsconfig.WithRetryMode(aws.RetryModeStandard),
		)
		logger.Debug("Configured S3 retry strategy", "mode", "standard", "maxAttempts", maxRetryAttempts)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
			if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
				awsCfg.Credentials = credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
			}
		}
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
		logger.Debug("S3 client uses custom endpoint", "endpoint", cfg.Endpoint)
	}
	client := s3.NewFromConfig(awsCfg, clientOpts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenSupported
	})

	return &S3{
		client:       client,
		uploader:     uploader,
		bucket:       cfg.Bucket,
		prefix:       cfg.Prefix,
		storageClass: cfg.StorageClass,
		logger:       logger,
	}, nil
}

func objectKey(prefix, remotePath string) string {
	return path.Join(prefix, remotePath)
}

// ManifestPath is the object path of a target's manifest taken at snapshot.
func ManifestPath(target, snapshot string, encrypted bool) string {
	name := snapshot + ".yaml"
	if snapshot == "" {
		name = "empty.yaml"
	}
	if encrypted {
		name += ".age"
	}
	return path.Join("manifests", target, name)
}

func (s *S3) Upload(ctx context.Context, body io.Reader, remotePath, checksumHash string) error {
	key := objectKey(s.prefix, remotePath)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		StorageClass: s.storageClass,
		Tagging:      aws.String("content=manifest"),
		Metadata:     map[string]string{"blake3": checksumHash},
	})
	if err != nil {
		return errors.Wrap(err, "failed to upload to S3")
	}

	s.logger.Info("Uploaded to S3", "bucket", s.bucket, "key", key, "storageClass", s.storageClass)
	return nil
}

func (s *S3) Head(ctx context.Context, remotePath string) (*ObjectInfo, error) {
	key := objectKey(s.prefix, remotePath)

	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to head object %s", key)
	}

	info := &ObjectInfo{}
	if output.ContentLength != nil {
		info.Size = *output.ContentLength
	}
	if output.Metadata != nil {
		info.Blake3 = output.Metadata["blake3"]
	}
	return info, nil
}

func (s *S3) VerifyCredentials(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return errors.Wrap(err, "failed to verify AWS credentials or bucket access")
	}

	s.logger.Debug("AWS credentials verified", "bucket", s.bucket)
	return nil
}

// Put uploads body to remotePath tagged with the BLAKE3 of body itself, then
// verifies the stored object. It returns that hash.
func Put(ctx context.Context, b Backend, body []byte, remotePath string) (string, error) {
	hash, err := crypto.BLAKE3(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if err := b.Upload(ctx, bytes.NewReader(body), remotePath, hash); err != nil {
		return "", err
	}
	if err := VerifyUpload(ctx, b, remotePath, int64(len(body)), hash); err != nil {
		return "", errors.Wrap(err, "upload verification failed")
	}
	return hash, nil
}

// VerifyUpload checks that the object at remotePath has the expected size
// and BLAKE3 metadata.
func VerifyUpload(ctx context.Context, b Backend, remotePath string, size int64, hash string) error {
	info, err := b.Head(ctx, remotePath)
	if err != nil {
		return err
	}
	if info.Size != size {
		return errors.Newf("uploaded %s has %d bytes, expected %d", remotePath, info.Size, size)
	}
	if info.Blake3 != hash {
		return errors.Newf("uploaded %s has checksum %q, expected %q", remotePath, info.Blake3, hash)
	}
	return nil
}

// ValidateStorageClass rejects classes whose objects cannot be read back
// without a restore request.
func ValidateStorageClass(storageClass types.StorageClass) error {
	if storageClass == types.StorageClassGlacier || storageClass == types.StorageClassDeepArchive {
		return errors.Newf("storage class %s is not immediately accessible (requires restore)", storageClass)
	}
	return nil
}
