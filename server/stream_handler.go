package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"TuneBay/logger"

	"github.com/gorilla/mux"
)

// StreamTrackHandler 以正确的字节区间语义回放已采集的音频。
// 未知曲目返回 404；曲目已知但音频尚未采集完成返回 503，
// 调用方应将其理解为"仍在采集流水线中，稍后重试"。
func (h *APIHandler) StreamTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	ctx := r.Context()

	exists, err := h.trackRepo.Exists(ctx, trackID)
	if err != nil {
		logger.Error("查询曲目失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to resolve track")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	rec, err := h.downloadRepo.GetRecord(ctx, trackID)
	if err != nil {
		logger.Error("查询下载记录失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to resolve track")
		return
	}
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "Track is downloading, try again shortly")
		return
	}

	info, err := h.blobStore.Stat(ctx, trackID)
	if err != nil || info == nil {
		logger.Error("音频对象不可用",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch audio")
		return
	}
	total := info.Size

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	// 区间语法不合法时退回整体下发，绝不中断播放
	start, end, partial := parseRange(r.Header.Get("Range"), total)

	var (
		object io.ReadCloser
		status int
	)
	if partial {
		object, err = h.blobStore.Open(ctx, trackID, start, end)
		if err == nil {
			w.Header().Set("Content-Range",
				"bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(total, 10))
			w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
			status = http.StatusPartialContent
		}
	} else {
		object, err = h.blobStore.Open(ctx, trackID, 0, -1)
		if err == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
			status = http.StatusOK
		}
	}
	if err != nil {
		logger.Error("打开音频对象失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch audio")
		return
	}
	defer object.Close()

	w.WriteHeader(status)

	// 流式透传，不在内存中缓冲整个对象。
	// 客户端断开时 r.Context() 取消，拷贝随之终止并释放底层流。
	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("音频流中断",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
	}
}

// parseRange 解析 "bytes=start-end" 形式的区间请求头。
// end 缺省时解析为 total-1。任何无法解析的形式（包括多区间与
// 后缀区间）都返回 false，由调用方退回整体下发。
func parseRange(header string, total int64) (start, end int64, ok bool) {
	if header == "" || total <= 0 {
		return 0, 0, false
	}
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}

	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])
	if startStr == "" {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= total {
		return 0, 0, false
	}

	if endStr == "" {
		end = total - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end >= total {
			end = total - 1
		}
	}
	return start, end, true
}
