package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/logger"
)

// uploadConcurrency bounds parallel PutObject calls per package.
const uploadConcurrency = 4

// MinioSink uploads every file of a package under <bucket>/<name>/.
type MinioSink struct {
	client *minio.Client
	bucket string
}

func NewMinioSink(ctx context.Context, cfg *config.Config) (*MinioSink, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("bucket created", logger.String("bucket", cfg.MinioBucket))
	}
	return &MinioSink{client: client, bucket: cfg.MinioBucket}, nil
}

func (s *MinioSink) Write(ctx context.Context, pkg *Package) (string, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)

	for _, file := range pkg.Files {
		g.Go(func() error {
			key := path.Join(pkg.Name, file.Name)
			_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)),
				minio.PutObjectOptions{ContentType: file.ContentType})
			if err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			logger.Debug("object uploaded", logger.String("key", key), logger.Int("bytes", len(file.Data)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	location := fmt.Sprintf("s3://%s/%s/", s.bucket, pkg.Name)
	logger.Info("package uploaded", logger.String("location", location), logger.Int("files", len(pkg.Files)))
	return location, nil
}
