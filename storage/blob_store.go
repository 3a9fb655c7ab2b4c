package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"TuneBay/logger"

	"github.com/minio/minio-go/v7"
)

// audioPrefix 音频对象统一存放在此前缀下，键名由曲目ID确定性导出
const audioPrefix = "audio/"

// ObjectInfo 音频对象信息
type ObjectInfo struct {
	TrackID    string
	Path       string
	Size       int64
	UploadedAt time.Time
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64 `json:"totalFiles"`
	TotalSize    int64 `json:"totalSize"`
}

// BlobStore 音频二进制对象的生命周期管理。
// 每个曲目ID至多对应一个存活对象，重复上传直接替换旧内容。
type BlobStore interface {
	Put(ctx context.Context, trackID string, r io.Reader, size int64, contentType string) (string, int64, error)
	Locate(ctx context.Context, trackID string) (string, error)
	Stat(ctx context.Context, trackID string) (*ObjectInfo, error)
	Open(ctx context.Context, trackID string, start, end int64) (io.ReadCloser, error)
	Delete(ctx context.Context, trackID string) error
	ListAll(ctx context.Context) ([]ObjectInfo, error)
	Stats(ctx context.Context) (*BucketStats, error)
}

// ObjectKey 由曲目ID导出确定性对象键，不带随机后缀，
// 同一曲目重入上传即覆盖
func ObjectKey(trackID string) string {
	return audioPrefix + trackID
}

// minioBlobStore implements BlobStore on top of a MinIO bucket.
type minioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore creates a BlobStore backed by the given bucket.
func NewMinioBlobStore(client *minio.Client, bucket string) BlobStore {
	return &minioBlobStore{client: client, bucket: bucket}
}

// Put 上传音频对象，返回对象键与字节数
func (s *minioBlobStore) Put(ctx context.Context, trackID string, r io.Reader, size int64, contentType string) (string, int64, error) {
	key := ObjectKey(trackID)
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	logger.Info("音频对象已上传",
		logger.String("trackId", trackID),
		logger.String("key", key),
		logger.Int64("size", info.Size))
	return key, info.Size, nil
}

// Locate 返回曲目对应的对象键，对象不存在时返回空串
func (s *minioBlobStore) Locate(ctx context.Context, trackID string) (string, error) {
	info, err := s.Stat(ctx, trackID)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", nil
	}
	return info.Path, nil
}

// Stat 查询对象元信息，对象不存在时返回 (nil, nil)
func (s *minioBlobStore) Stat(ctx context.Context, trackID string) (*ObjectInfo, error) {
	key := ObjectKey(trackID)
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", key, err)
	}
	return &ObjectInfo{
		TrackID:    trackID,
		Path:       key,
		Size:       stat.Size,
		UploadedAt: stat.LastModified,
	}, nil
}

// Open 打开对象的字节流。start/end 为闭区间偏移，end < 0 表示读到对象末尾。
// 返回的是流式 reader，调用方负责 Close。
func (s *minioBlobStore) Open(ctx context.Context, trackID string, start, end int64) (io.ReadCloser, error) {
	key := ObjectKey(trackID)
	opts := minio.GetObjectOptions{}
	if start > 0 || end >= 0 {
		rangeEnd := end
		if rangeEnd < 0 {
			rangeEnd = 0 // minio: end=0 表示读到对象末尾
		}
		if err := opts.SetRange(start, rangeEnd); err != nil {
			return nil, fmt.Errorf("invalid range %d-%d for %s: %w", start, end, key, err)
		}
	}

	object, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return object, nil
}

// Delete 删除曲目对应的音频对象
func (s *minioBlobStore) Delete(ctx context.Context, trackID string) error {
	key := ObjectKey(trackID)
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}
	logger.Info("音频对象已删除", logger.String("trackId", trackID))
	return nil
}

// ListAll 列出全部音频对象。仅供回收与统计使用，不在热路径上。
func (s *minioBlobStore) ListAll(ctx context.Context) ([]ObjectInfo, error) {
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    audioPrefix,
		Recursive: true,
	})

	var objects []ObjectInfo
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			TrackID:    object.Key[len(audioPrefix):],
			Path:       object.Key,
			Size:       object.Size,
			UploadedAt: object.LastModified,
		})
	}
	return objects, nil
}

// Stats 统计音频对象总数与总字节数
func (s *minioBlobStore) Stats(ctx context.Context) (*BucketStats, error) {
	objects, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BucketStats{}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
	}
	return stats, nil
}
