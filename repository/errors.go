package repository

import "errors"

// 错误分类，由 HTTP 层映射为对应的状态码
var (
	// ErrInvalidLocator 入队参数不是合法的 URL 或搜索词
	ErrInvalidLocator = errors.New("invalid locator")

	// ErrClaimConflict 对非预期状态的任务做状态迁移
	ErrClaimConflict = errors.New("job not in expected state")

	// ErrTrackMissing 为不存在的曲目写下载记录
	ErrTrackMissing = errors.New("track does not exist")

	// ErrNotFound 曲目ID完全未知
	ErrNotFound = errors.New("track not found")

	// ErrNotDownloaded 曲目已知但音频尚未采集完成，调用方应稍后重试
	ErrNotDownloaded = errors.New("track not downloaded yet")
)
