package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"TuneBay/db"
	"TuneBay/logger"
	"TuneBay/model"

	"github.com/google/uuid"
)

// QueueRepository defines the interface for download job bookkeeping.
// ClaimNext is the single mutual-exclusion point of the pipeline: a pending
// job becomes visible to exactly one caller, even across processes.
type QueueRepository interface {
	Enqueue(ctx context.Context, locator, titleHint string) (string, error)
	ClaimNext(ctx context.Context) (*model.DownloadJob, error)
	MarkCompleted(ctx context.Context, jobID, trackID string) error
	MarkFailed(ctx context.Context, jobID, reason string) error
	GetJob(ctx context.Context, jobID string) (*model.DownloadJob, error)
	Status(ctx context.Context) (*model.QueueStatus, error)
	Clear(ctx context.Context) (int64, error)
}

// mysqlQueueRepository implements QueueRepository for MySQL.
type mysqlQueueRepository struct {
	DB *sql.DB
}

// NewMySQLQueueRepository creates a new instance of mysqlQueueRepository.
func NewMySQLQueueRepository() QueueRepository {
	return &mysqlQueueRepository{DB: db.DB}
}

// ValidateLocator 校验定位符：合法的 URL 或非空搜索词
func ValidateLocator(locator string) error {
	trimmed := strings.TrimSpace(locator)
	if trimmed == "" {
		return ErrInvalidLocator
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		u, err := url.Parse(trimmed)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
		}
	}
	return nil
}

// Enqueue 创建一条 pending 任务并立即返回，不等待采集
func (r *mysqlQueueRepository) Enqueue(ctx context.Context, locator, titleHint string) (string, error) {
	if err := ValidateLocator(locator); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	query := `INSERT INTO download_jobs (id, locator, title_hint, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, NOW(), NOW())`
	_, err := r.DB.ExecContext(ctx, query, jobID, strings.TrimSpace(locator), titleHint, model.JobStatusPending)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue download job: %w", err)
	}

	logger.Info("下载任务已入队",
		logger.String("jobId", jobID),
		logger.String("locator", locator))
	return jobID, nil
}

// ClaimNext 原子地认领最早的一条 pending 任务并迁移到 processing。
// 通过带状态前置条件的单条 UPDATE 实现，不依赖进程内锁，
// 两个并发 worker 不可能认领到同一条任务。
// 队列为空时返回 (nil, nil)，不是错误。
func (r *mysqlQueueRepository) ClaimNext(ctx context.Context) (*model.DownloadJob, error) {
	token := uuid.NewString()

	// FIFO：按入队时间升序，同一时刻按任务ID升序
	query := `UPDATE download_jobs SET status = ?, claim_token = ?, updated_at = NOW()
	           WHERE status = ?
	           ORDER BY created_at ASC, id ASC
	           LIMIT 1`
	res, err := r.DB.ExecContext(ctx, query, model.JobStatusProcessing, token, model.JobStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim next job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected for claim: %w", err)
	}
	if affected == 0 {
		return nil, nil // no pending job
	}

	job, err := r.getByClaimToken(ctx, token)
	if err != nil {
		return nil, err
	}

	logger.Info("任务已被认领",
		logger.String("jobId", job.ID),
		logger.String("locator", job.Locator))
	return job, nil
}

func (r *mysqlQueueRepository) getByClaimToken(ctx context.Context, token string) (*model.DownloadJob, error) {
	query := `SELECT id, locator, title_hint, status, track_id, error_message, created_at, updated_at
	           FROM download_jobs WHERE claim_token = ?`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("claimed job vanished for token %s", token)
	}
	return job, nil
}

// MarkCompleted 将 processing 任务迁移到 completed 终态
func (r *mysqlQueueRepository) MarkCompleted(ctx context.Context, jobID, trackID string) error {
	query := `UPDATE download_jobs SET status = ?, track_id = ?, updated_at = NOW()
	           WHERE id = ? AND status = ?`
	res, err := r.DB.ExecContext(ctx, query, model.JobStatusCompleted, trackID, jobID, model.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", jobID, err)
	}
	return requireTransition(res, jobID)
}

// MarkFailed 将 processing 任务迁移到 failed 终态并记录失败原因
func (r *mysqlQueueRepository) MarkFailed(ctx context.Context, jobID, reason string) error {
	query := `UPDATE download_jobs SET status = ?, error_message = ?, updated_at = NOW()
	           WHERE id = ? AND status = ?`
	res, err := r.DB.ExecContext(ctx, query, model.JobStatusFailed, reason, jobID, model.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	return requireTransition(res, jobID)
}

// requireTransition 状态前置条件不满足时报告冲突，绝不静默覆盖
func requireTransition(res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for job %s: %w", jobID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s", ErrClaimConflict, jobID)
	}
	return nil
}

// GetJob 按ID查询任务，未找到时返回 (nil, nil)
func (r *mysqlQueueRepository) GetJob(ctx context.Context, jobID string) (*model.DownloadJob, error) {
	query := `SELECT id, locator, title_hint, status, track_id, error_message, created_at, updated_at
	           FROM download_jobs WHERE id = ?`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

// Status 返回各状态的任务数。单条聚合语句保证快照一致，
// 并发认领期间不会出现重复计数。
func (r *mysqlQueueRepository) Status(ctx context.Context) (*model.QueueStatus, error) {
	query := `SELECT
	            COALESCE(SUM(status = 'pending'), 0),
	            COALESCE(SUM(status = 'processing'), 0),
	            COALESCE(SUM(status = 'completed'), 0),
	            COALESCE(SUM(status = 'failed'), 0)
	           FROM download_jobs`

	status := &model.QueueStatus{}
	err := r.DB.QueryRowContext(ctx, query).Scan(&status.Pending, &status.Processing, &status.Completed, &status.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue status: %w", err)
	}
	return status, nil
}

// Clear 删除 pending 与 failed 的任务。
// processing（进行中）与 completed（已入库）的任务绝不触碰。
func (r *mysqlQueueRepository) Clear(ctx context.Context) (int64, error) {
	query := `DELETE FROM download_jobs WHERE status IN (?, ?)`
	res, err := r.DB.ExecContext(ctx, query, model.JobStatusPending, model.JobStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected for clear: %w", err)
	}
	logger.Info("队列已清理", logger.Int64("removed", removed))
	return removed, nil
}

// scanJob reads one job row. Returns (nil, nil) on sql.ErrNoRows.
func scanJob(row *sql.Row) (*model.DownloadJob, error) {
	job := &model.DownloadJob{}
	var (
		trackID   sql.NullString
		errMsg    sql.NullString
		titleHint sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&job.ID, &job.Locator, &titleHint, &job.Status, &trackID, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if titleHint.Valid {
		job.TitleHint = titleHint.String
	}
	if trackID.Valid {
		job.TrackID = &trackID.String
	}
	if errMsg.Valid {
		job.Error = &errMsg.String
	}
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return job, nil
}
