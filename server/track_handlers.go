package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"TuneBay/logger"
	"TuneBay/model"
	"TuneBay/repository"

	"github.com/gorilla/mux"
)

// trackResponse 对外暴露展示用元数据，覆盖值已按优先级解析
type trackResponse struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func toTrackResponse(t *model.Track) trackResponse {
	return trackResponse{
		ID:       t.ID,
		Title:    t.DisplayTitle(),
		Artist:   t.DisplayArtist(),
		Duration: t.Duration,
	}
}

// SearchTracksHandler 子串搜索。空查询返回全部已采集曲目。
func (h *APIHandler) SearchTracksHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	ctx := r.Context()

	if cached, ok := h.searchCache.Get(ctx, query); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	tracks, err := h.trackRepo.SearchTracks(ctx, query)
	if err != nil {
		logger.Error("搜索曲目失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to search tracks")
		return
	}

	results := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		results = append(results, toTrackResponse(t))
	}
	payload := map[string]any{"tracks": results}
	h.searchCache.Set(ctx, query, payload)
	writeJSON(w, http.StatusOK, payload)
}

// DownloadsHandler 返回全部已采集完成的曲目，按采集时间倒序
func (h *APIHandler) DownloadsHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.SearchTracks(r.Context(), "")
	if err != nil {
		logger.Error("查询已采集曲目失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch downloads")
		return
	}

	results := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		results = append(results, toTrackResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": results})
}

// GetTrackHandler 按ID查询单条曲目及其采集状态
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	ctx := r.Context()

	track, err := h.trackRepo.GetTrackByID(ctx, trackID)
	if err != nil {
		logger.Error("查询曲目失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch track")
		return
	}
	if track == nil {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	downloaded, err := h.downloadRepo.IsDownloaded(ctx, trackID)
	if err != nil {
		logger.Error("查询下载状态失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch track")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"track":      toTrackResponse(track),
		"downloaded": downloaded,
	})
}

// metadataRequest 元数据覆盖请求体，nil 字段表示清除覆盖
type metadataRequest struct {
	CustomTitle  *string `json:"customTitle"`
	CustomArtist *string `json:"customArtist"`
}

// SetMetadataHandler 设置展示用覆盖值，采集源提供的原始值不受影响
func (h *APIHandler) SetMetadataHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]

	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	track, err := h.trackRepo.SetCustomMetadata(r.Context(), trackID, req.CustomTitle, req.CustomArtist)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("设置元数据失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to set metadata")
		return
	}

	h.searchCache.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, toTrackResponse(track))
}

// DeleteTrackHandler 删除曲目及其音频对象。
// 下载记录、喜欢标记与播放列表关联由外键级联清除。
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]
	ctx := r.Context()

	if err := h.trackRepo.DeleteTrack(ctx, trackID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("删除曲目失败", logger.String("trackId", trackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	// 音频对象随目录行一并删除；失败时留给回收扫描兜底
	if err := h.blobStore.Delete(ctx, trackID); err != nil {
		logger.Warn("删除音频对象失败，等待回收扫描",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
	}

	h.searchCache.Invalidate(ctx)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ToggleLikeHandler 切换喜欢标记
func (h *APIHandler) ToggleLikeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"trackId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	liked, err := h.playlistRepo.ToggleLike(r.Context(), req.TrackID)
	if err != nil {
		logger.Error("切换喜欢标记失败", logger.String("trackId", req.TrackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to toggle like")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": liked})
}

// LikesHandler 返回全部被喜欢的曲目ID
func (h *APIHandler) LikesHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := h.playlistRepo.LikedTrackIDs(r.Context())
	if err != nil {
		logger.Error("查询喜欢列表失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch likes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trackIds": ids})
}

// PlaylistsHandler 播放列表的创建与列出
func (h *APIHandler) PlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		playlists, err := h.playlistRepo.GetAllPlaylists(r.Context())
		if err != nil {
			logger.Error("查询播放列表失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to fetch playlists")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})

	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		playlist, err := h.playlistRepo.CreatePlaylist(r.Context(), req.Name)
		if err != nil {
			logger.Error("创建播放列表失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to create playlist")
			return
		}
		writeJSON(w, http.StatusOK, playlist)
	}
}

// PlaylistHandler 单个播放列表的查询与删除
func (h *APIHandler) PlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid playlist id")
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		playlist, err := h.playlistRepo.GetPlaylistByID(ctx, id)
		if err != nil {
			logger.Error("查询播放列表失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to fetch playlist")
			return
		}
		if playlist == nil {
			writeError(w, http.StatusNotFound, "Playlist not found")
			return
		}
		trackIDs, err := h.playlistRepo.GetTrackIDs(ctx, id)
		if err != nil {
			logger.Error("查询播放列表曲目失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to fetch playlist tracks")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       playlist.ID,
			"name":     playlist.Name,
			"trackIds": trackIDs,
		})

	case http.MethodDelete:
		if err := h.playlistRepo.DeletePlaylist(ctx, id); err != nil {
			logger.Error("删除播放列表失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to delete playlist")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// PlaylistTracksHandler 播放列表曲目的加入与移出
func (h *APIHandler) PlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid playlist id")
		return
	}

	var req struct {
		TrackID string `json:"trackId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodPost:
		err = h.playlistRepo.AddTrack(ctx, id, req.TrackID)
	case http.MethodDelete:
		err = h.playlistRepo.RemoveTrack(ctx, id, req.TrackID)
	}
	if err != nil {
		logger.Error("更新播放列表曲目失败",
			logger.Int64("playlistId", id),
			logger.String("trackId", req.TrackID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to update playlist tracks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
