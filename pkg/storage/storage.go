// Package storage 头像等用户上传文件的存储后端
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"campusconnect/backend/config"
)

// Storage 文件存储接口
type Storage interface {
	// Put 保存对象，返回可公开访问的 URL
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// New 根据配置创建存储后端
func New(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3(cfg)
	default:
		return NewLocal(cfg.LocalDir, cfg.PublicURL)
	}
}

// ObjectKey 生成对象键：<prefix>/<uuid><ext>
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, uuid.NewString()+ext)
}

// ── 本地磁盘 ──

// Local 保存到本地目录，由 HTTP 服务静态托管
type Local struct {
	dir       string
	publicURL string
}

// NewLocal 创建本地存储并确保目录存在
func NewLocal(dir, publicURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	return &Local{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Dir 返回本地根目录
func (l *Local) Dir() string { return l.dir }

// Put 写入文件
func (l *Local) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	full := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("写入文件失败: %w", err)
	}
	return l.publicURL + "/" + key, nil
}

// ── S3 兼容对象存储 ──

// S3 兼容 AWS S3 / DigitalOcean Spaces / MinIO
type S3 struct {
	client    *s3.S3
	bucket    string
	endpoint  string
	publicURL string
}

// NewS3 创建 S3 客户端
func NewS3(cfg *config.StorageConfig) (*S3, error) {
	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("创建 S3 会话失败: %w", err)
	}

	return &S3{
		client:    s3.New(sess),
		bucket:    cfg.Bucket,
		endpoint:  cfg.Endpoint,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Put 上传对象并设置为公共可读
func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        aws.ReadSeekCloser(bytes.NewReader(data)),
		ACL:         aws.String("public-read"),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传文件失败: %w", err)
	}

	if s.publicURL != "" && strings.HasPrefix(s.publicURL, "http") {
		return s.publicURL + "/" + key, nil
	}
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key), nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key), nil
}

// ReadAll 读取上传内容并限制大小
func ReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
