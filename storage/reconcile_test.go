package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// fakeBlobStore 内存实现，只支持回收扫描用到的操作
type fakeBlobStore struct {
	objects []ObjectInfo
	deleted []string
	failOn  string
}

func (f *fakeBlobStore) Put(ctx context.Context, trackID string, r io.Reader, size int64, contentType string) (string, int64, error) {
	return ObjectKey(trackID), size, nil
}

func (f *fakeBlobStore) Locate(ctx context.Context, trackID string) (string, error) {
	return ObjectKey(trackID), nil
}

func (f *fakeBlobStore) Stat(ctx context.Context, trackID string) (*ObjectInfo, error) {
	for _, obj := range f.objects {
		if obj.TrackID == trackID {
			o := obj
			return &o, nil
		}
	}
	return nil, nil
}

func (f *fakeBlobStore) Open(ctx context.Context, trackID string, start, end int64) (io.ReadCloser, error) {
	return nil, errors.New("not supported")
}

func (f *fakeBlobStore) Delete(ctx context.Context, trackID string) error {
	if trackID == f.failOn {
		return errors.New("delete failed")
	}
	f.deleted = append(f.deleted, trackID)
	kept := f.objects[:0]
	for _, obj := range f.objects {
		if obj.TrackID != trackID {
			kept = append(kept, obj)
		}
	}
	f.objects = kept
	return nil
}

func (f *fakeBlobStore) ListAll(ctx context.Context) ([]ObjectInfo, error) {
	out := make([]ObjectInfo, len(f.objects))
	copy(out, f.objects)
	return out, nil
}

func (f *fakeBlobStore) Stats(ctx context.Context) (*BucketStats, error) {
	stats := &BucketStats{}
	for _, obj := range f.objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
	}
	return stats, nil
}

func obj(trackID string, age time.Duration) ObjectInfo {
	return ObjectInfo{
		TrackID:    trackID,
		Path:       ObjectKey(trackID),
		Size:       1024,
		UploadedAt: time.Now().Add(-age),
	}
}

func TestReconcileDeletesOnlyOrphans(t *testing.T) {
	store := &fakeBlobStore{objects: []ObjectInfo{
		obj("track-a", 48*time.Hour),
		obj("track-b", 48*time.Hour),
		obj("track-c", 48*time.Hour),
	}}
	valid := map[string]struct{}{
		"track-a": {},
		"track-b": {},
	}

	deleted, err := Reconcile(context.Background(), store, valid, time.Hour)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "track-c" {
		t.Fatalf("deleted objects = %v, want [track-c]", store.deleted)
	}
}

func TestReconcileRespectsGracePeriod(t *testing.T) {
	// track-new 是孤儿但刚上传，可能正处于"blob已写、目录未写"的过渡态
	store := &fakeBlobStore{objects: []ObjectInfo{
		obj("track-old", 2*time.Hour),
		obj("track-new", time.Minute),
	}}

	deleted, err := Reconcile(context.Background(), store, map[string]struct{}{}, time.Hour)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if store.deleted[0] != "track-old" {
		t.Fatalf("deleted %v, want track-old only", store.deleted)
	}
}

func TestReconcileEmptyStore(t *testing.T) {
	store := &fakeBlobStore{}
	deleted, err := Reconcile(context.Background(), store, map[string]struct{}{}, time.Hour)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("deleted = %d, want 0", deleted)
	}
}

func TestReconcileStopsOnDeleteError(t *testing.T) {
	store := &fakeBlobStore{
		objects: []ObjectInfo{
			obj("track-a", 48*time.Hour),
		},
		failOn: "track-a",
	}

	_, err := Reconcile(context.Background(), store, map[string]struct{}{}, time.Hour)
	if err == nil {
		t.Fatal("expected error when delete fails")
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("abc123"); got != "audio/abc123" {
		t.Errorf("ObjectKey() = %q, want %q", got, "audio/abc123")
	}
	// 同一曲目ID必须导出同一对象键
	if ObjectKey("x") != ObjectKey("x") {
		t.Error("ObjectKey is not deterministic")
	}
}
