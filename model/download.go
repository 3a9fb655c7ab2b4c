package model

import "time"

// JobStatus 下载任务状态，只允许单向前进：
// pending → processing → completed | failed
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// DownloadJob 表示一次音频采集请求
type DownloadJob struct {
	ID        string    `json:"id"`
	Locator   string    `json:"locator"` // URL 或搜索词
	TitleHint string    `json:"titleHint,omitempty"`
	Status    JobStatus `json:"status"`
	TrackID   *string   `json:"trackId,omitempty"` // 采集成功后指向曲目
	Error     *string   `json:"error,omitempty"`   // 失败原因
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal 判断任务是否已进入终态
func (j *DownloadJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// QueueStatus 队列状态快照
type QueueStatus struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// DownloadRecord 记录某曲目的音频已被采集并存储到何处
type DownloadRecord struct {
	TrackID      string    `json:"trackId"`
	BlobPath     string    `json:"blobPath"`
	FileSize     int64     `json:"fileSize"`
	ContentType  string    `json:"contentType"`
	DownloadedAt time.Time `json:"downloadedAt"`
}
