package storage

import (
	"context"
	"time"

	"TuneBay/logger"
)

// Reconcile 清理孤儿对象：列出存储中的全部音频对象，删除其中
// 曲目ID不在 validIDs 里、且上传时间早于宽限期的对象。
//
// 宽限期用来规避"对象刚上传、目录行尚未写入"的窗口：列表与目录
// 核对之间上传的新对象在宽限期内不会被误删。与上传并发执行是安全的。
func Reconcile(ctx context.Context, store BlobStore, validIDs map[string]struct{}, grace time.Duration) (int, error) {
	objects, err := store.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-grace)
	deleted := 0
	for _, obj := range objects {
		if _, ok := validIDs[obj.TrackID]; ok {
			continue
		}
		if obj.UploadedAt.After(cutoff) {
			// 宽限期内的新对象，可能正处于"blob已写、目录未写"的过渡态
			continue
		}
		if err := store.Delete(ctx, obj.TrackID); err != nil {
			return deleted, err
		}
		logger.Info("孤儿对象已回收",
			logger.String("trackId", obj.TrackID),
			logger.Int64("size", obj.Size))
		deleted++
	}
	return deleted, nil
}
