package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"TuneBay/core/events"
	"TuneBay/logger"
	"TuneBay/model"
	"TuneBay/repository"

	"github.com/gorilla/mux"
)

// enqueueRequest 入队请求体
type enqueueRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// EnqueueHandler 接收一条下载请求并立即返回，不等待采集完成
func (h *APIHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	jobID, err := h.queueRepo.Enqueue(r.Context(), req.URL, req.Title)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLocator) {
			writeError(w, http.StatusBadRequest, "A valid URL or search query is required")
			return
		}
		logger.Error("入队失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to enqueue download")
		return
	}

	h.notifier.JobUpdated(r.Context(), events.Event{
		Type:   events.EventJobEnqueued,
		JobID:  jobID,
		Status: model.JobStatusPending,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "enqueued",
		"jobId":   jobID,
		"message": "Download queued successfully. A worker will process it shortly.",
	})
}

// QueueStatusHandler 返回各状态的任务数
func (h *APIHandler) QueueStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.queueRepo.Status(r.Context())
	if err != nil {
		logger.Error("查询队列状态失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to get queue status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetJobHandler 按ID查询单条任务
func (h *APIHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.queueRepo.GetJob(r.Context(), jobID)
	if err != nil {
		logger.Error("查询任务失败", logger.String("jobId", jobID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ClearQueueHandler 清理队列中 pending 与 failed 的任务。
// 进行中与已完成的任务不受影响。
func (h *APIHandler) ClearQueueHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := h.queueRepo.Clear(r.Context())
	if err != nil {
		logger.Error("清理队列失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to clear queue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "cleared",
		"removed": removed,
	})
}
