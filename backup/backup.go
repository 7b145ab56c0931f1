// Package backup copies a folder of images to S3 compatible object storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/choiway/photomerge/config"
	"github.com/choiway/photomerge/photo"
)

// ObjectStore is the part of the S3 client the uploader needs.
type ObjectStore interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	client ObjectStore
	bucket string
	region string
	prefix string
	log    *zap.Logger
}

type Upload struct {
	Path        string
	Key         string
	Size        int64
	ContentType string
}

// NewS3Uploader builds a client from cfg. A custom endpoint (MinIO and
// friends) switches to path style addressing.
func NewS3Uploader(ctx context.Context, cfg config.S3Config, log *zap.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, &photo.OpError{Op: "backup.new", Kind: photo.KindInvalidConfig, Err: errors.New("s3 bucket is required")}
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewUploader(client, cfg.Bucket, cfg.Region, cfg.Prefix, log), nil
}

func NewUploader(client ObjectStore, bucket, region, prefix string, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{client: client, bucket: bucket, region: region, prefix: strings.Trim(prefix, "/"), log: log}
}

func (u *Uploader) ensureBucketExists(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err == nil {
		return nil
	}

	u.log.Info("creating bucket", zap.String("bucket", u.bucket))

	in := &s3.CreateBucketInput{Bucket: aws.String(u.bucket)}
	if u.region != "" && u.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(u.region),
		}
	}

	if _, err := u.client.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}

	return nil
}

// UploadDir uploads every regular file below dir. Hidden files and folders
// are skipped. Keys are the slash separated path relative to dir under the
// configured prefix.
func (u *Uploader) UploadDir(ctx context.Context, dir string) ([]Upload, error) {
	if err := u.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	var uploads []Upload
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		up, err := u.uploadFile(ctx, p, path.Join(u.prefix, filepath.ToSlash(rel)))
		if err != nil {
			return err
		}
		uploads = append(uploads, up)
		return nil
	})
	if err != nil {
		return uploads, err
	}

	u.log.Info("backup complete", zap.String("bucket", u.bucket), zap.Int("files", len(uploads)))

	return uploads, nil
}

func (u *Uploader) uploadFile(ctx context.Context, p, key string) (Upload, error) {
	f, err := os.Open(p)
	if err != nil {
		return Upload{}, &photo.OpError{Op: "backup.upload", Kind: photo.KindFileAccess, Path: p, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Upload{}, &photo.OpError{Op: "backup.upload", Kind: photo.KindFileAccess, Path: p, Err: err}
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Upload{}, &photo.OpError{Op: "backup.upload", Kind: photo.KindFileAccess, Path: p, Err: err}
	}
	contentType := http.DetectContentType(head[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Upload{}, err
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		u.log.Error("failed to upload file", zap.String("key", key), zap.Error(err))
		return Upload{}, fmt.Errorf("upload %s: %w", key, err)
	}

	u.log.Debug("file uploaded", zap.String("key", key), zap.Int64("size", info.Size()))

	return Upload{Path: p, Key: key, Size: info.Size(), ContentType: contentType}, nil
}
