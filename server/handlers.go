package server

import (
	"encoding/json"
	"net/http"

	"TuneBay/cache"
	"TuneBay/config"
	"TuneBay/core/events"
	"TuneBay/logger"
	"TuneBay/repository"
	"TuneBay/storage"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	queueRepo    repository.QueueRepository
	trackRepo    repository.TrackRepository
	downloadRepo repository.DownloadRepository
	playlistRepo repository.PlaylistRepository
	blobStore    storage.BlobStore
	notifier     events.Notifier
	searchCache  *cache.SearchCache
	cfg          *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	queueRepo repository.QueueRepository,
	trackRepo repository.TrackRepository,
	downloadRepo repository.DownloadRepository,
	playlistRepo repository.PlaylistRepository,
	blobStore storage.BlobStore,
	notifier events.Notifier,
	searchCache *cache.SearchCache,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		queueRepo:    queueRepo,
		trackRepo:    trackRepo,
		downloadRepo: downloadRepo,
		playlistRepo: playlistRepo,
		blobStore:    blobStore,
		notifier:     notifier,
		searchCache:  searchCache,
		cfg:          cfg,
	}
}

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("写入响应失败", logger.ErrorField(err))
	}
}

// writeError 写入错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
