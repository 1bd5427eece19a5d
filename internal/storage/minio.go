package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"resume-agent-go/internal/apperr"
	"resume-agent-go/internal/config"
)

// MinIOStore 基于MinIO的对象存储实现，保存生成的简历和求职信
type MinIOStore struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

var _ ObjectStore = (*MinIOStore)(nil)

// NewMinIOStore 创建MinIO存储并确保存储桶存在
func NewMinIOStore(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIOStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "generated-documents"
	}

	s := &MinIOStore{
		client: client,
		bucket: bucket,
		logger: logger,
	}
	if err := s.ensureBucketExists(context.Background(), bucket, cfg.Location); err != nil {
		return nil, err
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO存储初始化完成")
	return s, nil
}

// ensureBucketExists 确保存储桶存在，不存在则创建
func (s *MinIOStore) ensureBucketExists(ctx context.Context, bucket, location string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucket, err)
		}
		s.logger.Info().Str("bucket", bucket).Msg("存储桶已创建")
	}
	return nil
}

// Put 实现 ObjectStore 接口
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s 失败: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("对象上传完成")
	return fmt.Sprintf("minio://%s/%s", s.bucket, key), nil
}

// Get 实现 ObjectStore 接口
func (s *MinIOStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s 失败: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isMinIONotFound(err) {
			return nil, apperr.NewNotFound("MinIOStore.Get", "对象 "+key)
		}
		return nil, fmt.Errorf("读取对象 %s 失败: %w", key, err)
	}
	return data, nil
}

// Presign 实现 ObjectStore 接口
func (s *MinIOStore) Presign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败 (对象 %s): %w", key, err)
	}
	return u.String(), nil
}

// Delete 实现 ObjectStore 接口
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", key, err)
	}
	return nil
}

// isMinIONotFound 判断MinIO错误是否为对象不存在
func isMinIONotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || strings.Contains(err.Error(), "does not exist")
}
