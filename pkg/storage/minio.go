package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // 服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例，存储桶不存在时创建
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioStorage{client: client, bucketName: cfg.Bucket}, nil
}

// Save 以流式上传保存文件
func (s *MinioStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	objectName := fmt.Sprintf("%s/%s%s", objectDir(time.Now()), id, filepath.Ext(filename))
	contentType := getMimeType(filename)

	info, err := s.client.PutObject(context.Background(), s.bucketName, objectName, reader, -1,
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"filename": filename},
		})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %v", err)
	}

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     info.Size,
		MimeType: contentType,
		Path:     objectName,
		ModTime:  info.LastModified,
	}, nil
}

// Get 获取文件内容
func (s *MinioStorage) Get(id string) (io.ReadCloser, error) {
	fi, err := s.Stat(id)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(context.Background(), s.bucketName, fi.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}
	return obj, nil
}

// Stat 获取文件信息
func (s *MinioStorage) Stat(id string) (FileInfo, error) {
	files, err := s.List()
	if err != nil {
		return FileInfo{}, err
	}
	for _, f := range files {
		if f.ID == id {
			return f, nil
		}
	}
	return FileInfo{}, notFound(id)
}

// Delete 删除文件
func (s *MinioStorage) Delete(id string) error {
	fi, err := s.Stat(id)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(context.Background(), s.bucketName, fi.Path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}
	return nil
}

// List 列出存储桶中的所有文件
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo
	for object := range s.client.ListObjects(context.Background(), s.bucketName, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}
		files = append(files, FileInfo{
			ID:       idFromName(object.Key),
			Name:     filepath.Base(object.Key),
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
			Path:     object.Key,
			ModTime:  object.LastModified,
		})
	}
	return files, nil
}

// Exists 检查文件是否存在
func (s *MinioStorage) Exists(id string) (bool, error) {
	_, err := s.Stat(id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}
