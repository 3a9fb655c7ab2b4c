package server

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"TuneBay/logger"
	"TuneBay/model"

	"github.com/google/uuid"
)

// maxUploadMemory 超出部分由 multipart 读取器落盘缓冲
const maxUploadMemory = 32 << 20

// UploadTrackHandler 手动上传音频，绕过采集流水线直接入库。
// 写入顺序与 worker 一致：先写 blob，再写曲目行与下载记录；
// 目录写入失败时 blob 留在原处，交给回收扫描处理。
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	trackID := strings.TrimSpace(r.FormValue("trackId"))
	if trackID == "" {
		trackID = uuid.NewString()
	}

	// 标题缺省时取文件名（去扩展名）
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if title == "" {
		writeError(w, http.StatusBadRequest, "title or a named file is required")
		return
	}

	var duration float64
	if v := r.FormValue("duration"); v != "" {
		duration, err = strconv.ParseFloat(v, 64)
		if err != nil || duration < 0 {
			writeError(w, http.StatusBadRequest, "Invalid duration")
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	ctx := r.Context()

	blobPath, size, err := h.blobStore.Put(ctx, trackID, file, header.Size, contentType)
	if err != nil {
		logger.Error("上传音频对象失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to store audio")
		return
	}

	track := &model.Track{
		ID:       trackID,
		Title:    title,
		Artist:   strings.TrimSpace(r.FormValue("artist")),
		Duration: duration,
	}
	if err := h.trackRepo.LogTrack(ctx, track); err != nil {
		logger.Error("写入曲目失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to catalog track")
		return
	}

	rec := &model.DownloadRecord{
		TrackID:     trackID,
		BlobPath:    blobPath,
		FileSize:    size,
		ContentType: contentType,
	}
	if err := h.downloadRepo.LogDownload(ctx, rec); err != nil {
		logger.Error("写入下载记录失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to catalog track")
		return
	}

	h.searchCache.Invalidate(ctx)

	logger.Info("音频上传完成",
		logger.String("trackId", trackID),
		logger.String("title", title),
		logger.Int64("size", size))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "uploaded",
		"trackId": trackID,
		"size":    size,
	})
}
