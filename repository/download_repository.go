package repository

import (
	"context"
	"database/sql"
	"fmt"

	"TuneBay/db"
	"TuneBay/logger"
	"TuneBay/model"
)

// DownloadRepository defines the interface for download record operations.
// A download record asserts "this track's audio bytes exist in the blob
// store"; it always references an existing track.
type DownloadRepository interface {
	LogDownload(ctx context.Context, rec *model.DownloadRecord) error
	GetRecord(ctx context.Context, trackID string) (*model.DownloadRecord, error)
	IsDownloaded(ctx context.Context, trackID string) (bool, error)
	DeleteRecord(ctx context.Context, trackID string) error
	ListTrackIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// mysqlDownloadRepository implements DownloadRepository for MySQL.
type mysqlDownloadRepository struct {
	DB *sql.DB
}

// NewMySQLDownloadRepository creates a new instance of mysqlDownloadRepository.
func NewMySQLDownloadRepository() DownloadRepository {
	return &mysqlDownloadRepository{DB: db.DB}
}

// LogDownload 写入下载记录。曲目必须已存在，否则返回 ErrTrackMissing。
// 同一曲目重复写入是幂等的（ON DUPLICATE KEY 刷新指向）。
func (r *mysqlDownloadRepository) LogDownload(ctx context.Context, rec *model.DownloadRecord) error {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM tracks WHERE id = ? LIMIT 1`, rec.TrackID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrTrackMissing, rec.TrackID)
		}
		return fmt.Errorf("failed to check track for download record %s: %w", rec.TrackID, err)
	}

	query := `INSERT INTO downloads (track_id, blob_path, file_size, content_type, downloaded_at)
	           VALUES (?, ?, ?, ?, NOW())
	           ON DUPLICATE KEY UPDATE
	             blob_path = VALUES(blob_path),
	             file_size = VALUES(file_size),
	             content_type = VALUES(content_type),
	             downloaded_at = NOW()`
	_, err = r.DB.ExecContext(ctx, query, rec.TrackID, rec.BlobPath, rec.FileSize, rec.ContentType)
	if err != nil {
		return fmt.Errorf("failed to log download for track %s: %w", rec.TrackID, err)
	}

	logger.Info("下载记录已写入",
		logger.String("trackId", rec.TrackID),
		logger.Int64("fileSize", rec.FileSize))
	return nil
}

// GetRecord 按曲目ID查询下载记录，未找到返回 (nil, nil)
func (r *mysqlDownloadRepository) GetRecord(ctx context.Context, trackID string) (*model.DownloadRecord, error) {
	query := `SELECT track_id, blob_path, file_size, content_type, downloaded_at
	           FROM downloads WHERE track_id = ?`
	rec := &model.DownloadRecord{}
	var contentType sql.NullString
	err := r.DB.QueryRowContext(ctx, query, trackID).Scan(&rec.TrackID, &rec.BlobPath, &rec.FileSize, &contentType, &rec.DownloadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan download record for %s: %w", trackID, err)
	}
	if contentType.Valid {
		rec.ContentType = contentType.String
	}
	return rec, nil
}

// IsDownloaded 检查曲目的音频是否已采集完成
func (r *mysqlDownloadRepository) IsDownloaded(ctx context.Context, trackID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM downloads WHERE track_id = ? LIMIT 1`, trackID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check download for %s: %w", trackID, err)
	}
	return true, nil
}

// DeleteRecord removes the download record for a track.
func (r *mysqlDownloadRepository) DeleteRecord(ctx context.Context, trackID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM downloads WHERE track_id = ?`, trackID)
	if err != nil {
		return fmt.Errorf("failed to delete download record for %s: %w", trackID, err)
	}
	return nil
}

// ListTrackIDs 返回所有已采集曲目的ID，供孤儿对象回收比对
func (r *mysqlDownloadRepository) ListTrackIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT track_id FROM downloads`)
	if err != nil {
		return nil, fmt.Errorf("failed to list download track ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id in ListTrackIDs: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListTrackIDs: %w", err)
	}
	return ids, nil
}

// Count returns the number of download records.
func (r *mysqlDownloadRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return count, nil
}
