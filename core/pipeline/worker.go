package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"TuneBay/core/events"
	"TuneBay/core/source"
	"TuneBay/logger"
	"TuneBay/model"
	"TuneBay/repository"
	"TuneBay/storage"
)

// Source 采集源契约：把定位符解析为元数据与音频字节流
type Source interface {
	Fetch(ctx context.Context, locator string) (*source.Item, error)
}

// Worker 消费下载队列，把一条任务变成 blob + 目录状态，或一条失败记录。
// 任意数量的 Worker 可以并发运行，正确性完全依赖 ClaimNext 的排他性
// 以及"先写 blob、后写目录"的写入顺序。
type Worker struct {
	queue     repository.QueueRepository
	tracks    repository.TrackRepository
	downloads repository.DownloadRepository
	blobs     storage.BlobStore
	source    Source
	notifier  events.Notifier

	fetchTimeout time.Duration
	pollInterval time.Duration
	concurrency  int
}

// NewWorker 创建采集 Worker
func NewWorker(
	queue repository.QueueRepository,
	tracks repository.TrackRepository,
	downloads repository.DownloadRepository,
	blobs storage.BlobStore,
	src Source,
	notifier events.Notifier,
	fetchTimeout, pollInterval time.Duration,
	concurrency int,
) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue:        queue,
		tracks:       tracks,
		downloads:    downloads,
		blobs:        blobs,
		source:       src,
		notifier:     notifier,
		fetchTimeout: fetchTimeout,
		pollInterval: pollInterval,
		concurrency:  concurrency,
	}
}

// TrackIDFor 导出曲目ID：优先使用采集源提供的稳定ID，
// 否则取定位符的 SHA-1，保证同一定位符去重
func TrackIDFor(sourceID, locator string) string {
	if sourceID != "" {
		return sourceID
	}
	sum := sha1.Sum([]byte(locator))
	return hex.EncodeToString(sum[:])
}

// Run 启动 Worker 池并阻塞，直到 ctx 取消
func (w *Worker) Run(ctx context.Context) {
	logger.Info("采集 Worker 启动",
		logger.Int("concurrency", w.concurrency),
		logger.Duration("pollInterval", w.pollInterval),
		logger.Duration("fetchTimeout", w.fetchTimeout))

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	logger.Info("采集 Worker 已停止")
}

// loop 单个 worker 的轮询循环：清空队列后休眠一个轮询间隔
func (w *Worker) loop(ctx context.Context, id int) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		// 连续认领直到队列为空
		for {
			claimed, err := w.ProcessNext(ctx)
			if err != nil {
				logger.Error("处理任务出错",
					logger.Int("worker", id),
					logger.ErrorField(err))
				break
			}
			if !claimed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessNext 认领并处理一条任务。队列为空时返回 (false, nil)。
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.notifier.JobUpdated(ctx, events.Event{
		Type:   events.EventJobClaimed,
		JobID:  job.ID,
		Status: model.JobStatusProcessing,
	})

	w.process(ctx, job)
	return true, nil
}

// process 处理一条已认领的任务。
// 写入顺序固定：blob → 曲目行 → 下载记录 → 任务终态。
// 目录写入失败时任务记失败，但 blob 留在原处，交给回收扫描处理，
// 不做有风险的回滚。
func (w *Worker) process(ctx context.Context, job *model.DownloadJob) {
	logger.Info("开始处理下载任务",
		logger.String("jobId", job.ID),
		logger.String("locator", job.Locator))

	fetchCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
	defer cancel()

	item, err := w.source.Fetch(fetchCtx, job.Locator)
	if err != nil {
		// 拉取失败：未发生任何目录写入
		w.fail(ctx, job, fmt.Sprintf("acquisition failed: %v", err))
		return
	}
	defer item.Body.Close()

	trackID := TrackIDFor(item.ID, job.Locator)

	blobPath, size, err := w.blobs.Put(ctx, trackID, item.Body, item.Size, item.ContentType)
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("blob upload failed: %v", err))
		return
	}

	title := item.Title
	if (title == "" || title == "Unknown") && job.TitleHint != "" {
		title = job.TitleHint
	}

	track := &model.Track{
		ID:        trackID,
		Title:     title,
		Artist:    item.Artist,
		Duration:  item.Duration,
		SourceURL: job.Locator,
	}
	if err := w.tracks.LogTrack(ctx, track); err != nil {
		w.fail(ctx, job, fmt.Sprintf("catalog write failed: %v", err))
		return
	}

	rec := &model.DownloadRecord{
		TrackID:     trackID,
		BlobPath:    blobPath,
		FileSize:    size,
		ContentType: item.ContentType,
	}
	if err := w.downloads.LogDownload(ctx, rec); err != nil {
		w.fail(ctx, job, fmt.Sprintf("download record write failed: %v", err))
		return
	}

	if err := w.queue.MarkCompleted(ctx, job.ID, trackID); err != nil {
		logger.Error("任务完成状态写入失败",
			logger.String("jobId", job.ID),
			logger.ErrorField(err))
		return
	}

	w.notifier.JobUpdated(ctx, events.Event{
		Type:    events.EventJobDone,
		JobID:   job.ID,
		Status:  model.JobStatusCompleted,
		TrackID: trackID,
	})

	logger.Info("下载任务处理完成",
		logger.String("jobId", job.ID),
		logger.String("trackId", trackID),
		logger.Int64("size", size))
}

// fail 将任务记为终态失败并发射事件。失败不会被自动重试，
// 重试由调用方显式重新入队。
func (w *Worker) fail(ctx context.Context, job *model.DownloadJob, reason string) {
	logger.Warn("下载任务失败",
		logger.String("jobId", job.ID),
		logger.String("reason", reason))

	if err := w.queue.MarkFailed(ctx, job.ID, reason); err != nil {
		logger.Error("任务失败状态写入失败",
			logger.String("jobId", job.ID),
			logger.ErrorField(err))
		return
	}

	w.notifier.JobUpdated(ctx, events.Event{
		Type:   events.EventJobFailed,
		JobID:  job.ID,
		Status: model.JobStatusFailed,
		Error:  reason,
	})
}
