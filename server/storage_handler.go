package server

import (
	"net/http"

	"TuneBay/logger"
	"TuneBay/storage"
)

// StorageStatsHandler 返回对象存储与目录的聚合统计
func (h *APIHandler) StorageStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bucketStats, err := h.blobStore.Stats(ctx)
	if err != nil {
		logger.Error("统计存储桶失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch storage stats")
		return
	}

	trackCount, err := h.trackRepo.Count(ctx)
	if err != nil {
		logger.Error("统计曲目失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch storage stats")
		return
	}
	downloadCount, err := h.downloadRepo.Count(ctx)
	if err != nil {
		logger.Error("统计下载记录失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch storage stats")
		return
	}
	playlistCount, err := h.playlistRepo.CountPlaylists(ctx)
	if err != nil {
		logger.Error("统计播放列表失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch storage stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"storage": bucketStats,
		"database": map[string]int64{
			"tracks":    trackCount,
			"downloads": downloadCount,
			"playlists": playlistCount,
		},
	})
}

// ReconcileHandler 回收孤儿音频对象：存储中存在、目录中无下载记录的
// 对象会被删除（受宽限期保护）
func (h *APIHandler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ids, err := h.downloadRepo.ListTrackIDs(ctx)
	if err != nil {
		logger.Error("读取下载记录失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to reconcile storage")
		return
	}

	validIDs := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		validIDs[id] = struct{}{}
	}

	deleted, err := storage.Reconcile(ctx, h.blobStore, validIDs, h.cfg.ReconcileGrace)
	if err != nil {
		logger.Error("回收孤儿对象失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to reconcile storage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"deletedCount": deleted,
	})
}
