package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"TuneBay/db"
	"TuneBay/logger"
	"TuneBay/model"
)

// TrackRepository defines the interface for track catalog operations.
type TrackRepository interface {
	LogTrack(ctx context.Context, track *model.Track) error
	GetTrackByID(ctx context.Context, id string) (*model.Track, error)
	Exists(ctx context.Context, id string) (bool, error)
	SetCustomMetadata(ctx context.Context, id string, customTitle, customArtist *string) (*model.Track, error)
	SearchTracks(ctx context.Context, query string) ([]*model.Track, error)
	DeleteTrack(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository() TrackRepository {
	return &mysqlTrackRepository{DB: db.DB}
}

const trackColumns = `id, title, artist, duration, custom_title, custom_artist, source_url, created_at, updated_at`

// LogTrack 按ID幂等写入曲目。重复写入时刷新采集源提供的元数据，
// 但绝不覆盖用户自定义的 custom_title / custom_artist。
func (r *mysqlTrackRepository) LogTrack(ctx context.Context, track *model.Track) error {
	query := `INSERT INTO tracks (id, title, artist, duration, source_url, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, NOW(), NOW())
	           ON DUPLICATE KEY UPDATE
	             title = VALUES(title),
	             artist = VALUES(artist),
	             duration = VALUES(duration),
	             source_url = VALUES(source_url),
	             updated_at = NOW()`
	_, err := r.DB.ExecContext(ctx, query, track.ID, track.Title, track.Artist, track.Duration, track.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to log track %s: %w", track.ID, err)
	}
	logger.Info("曲目已入库",
		logger.String("trackId", track.ID),
		logger.String("title", track.Title))
	return nil
}

// GetTrackByID retrieves a track by its ID.
func (r *mysqlTrackRepository) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	track, err := scanTrack(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to scan track by ID %s: %w", id, err)
	}
	return track, nil
}

// Exists 检查曲目ID是否已知
func (r *mysqlTrackRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM tracks WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check track existence for %s: %w", id, err)
	}
	return true, nil
}

// SetCustomMetadata 设置展示用覆盖值。传 nil 表示清除覆盖，
// 采集源提供的原始值保持不变。
func (r *mysqlTrackRepository) SetCustomMetadata(ctx context.Context, id string, customTitle, customArtist *string) (*model.Track, error) {
	query := `UPDATE tracks SET custom_title = ?, custom_artist = ?, updated_at = NOW() WHERE id = ?`
	res, err := r.DB.ExecContext(ctx, query, customTitle, customArtist, id)
	if err != nil {
		return nil, fmt.Errorf("failed to set custom metadata for track %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected for track %s: %w", id, err)
	}
	if affected == 0 {
		// UPDATE 命中0行也可能是值未变化，需要再确认曲目是否存在
		exists, err := r.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return r.GetTrackByID(ctx, id)
}

// SearchTracks 按标题或艺术家做子串搜索，覆盖值与原始值都参与匹配。
// 空查询返回全部已采集曲目，按采集时间倒序。
func (r *mysqlTrackRepository) SearchTracks(ctx context.Context, query string) ([]*model.Track, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(query) == "" {
		stmt := `SELECT t.id, t.title, t.artist, t.duration, t.custom_title, t.custom_artist, t.source_url, t.created_at, t.updated_at
		          FROM tracks t
		          INNER JOIN downloads d ON t.id = d.track_id
		          ORDER BY d.downloaded_at DESC`
		rows, err = r.DB.QueryContext(ctx, stmt)
	} else {
		pattern := "%" + query + "%"
		stmt := `SELECT ` + trackColumns + `
		          FROM tracks
		          WHERE title LIKE ?
		             OR artist LIKE ?
		             OR COALESCE(custom_title, title) LIKE ?
		             OR COALESCE(custom_artist, artist) LIKE ?
		          ORDER BY title`
		rows, err = r.DB.QueryContext(ctx, stmt, pattern, pattern, pattern, pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrackRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track in SearchTracks: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in SearchTracks: %w", err)
	}
	return tracks, nil
}

// DeleteTrack 删除曲目。下载记录、喜欢标记与播放列表关联由外键级联清除。
func (r *mysqlTrackRepository) DeleteTrack(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for delete of %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	logger.Info("曲目已删除", logger.String("trackId", id))
	return nil
}

// Count returns the number of catalog rows.
func (r *mysqlTrackRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackFields(s rowScanner) (*model.Track, error) {
	track := &model.Track{}
	var (
		artist       sql.NullString
		duration     sql.NullFloat64
		customTitle  sql.NullString
		customArtist sql.NullString
		sourceURL    sql.NullString
	)
	err := s.Scan(&track.ID, &track.Title, &artist, &duration, &customTitle, &customArtist, &sourceURL, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if artist.Valid {
		track.Artist = artist.String
	}
	if duration.Valid {
		track.Duration = duration.Float64
	}
	if customTitle.Valid {
		track.CustomTitle = &customTitle.String
	}
	if customArtist.Valid {
		track.CustomArtist = &customArtist.String
	}
	if sourceURL.Valid {
		track.SourceURL = sourceURL.String
	}
	return track, nil
}

func scanTrack(row *sql.Row) (*model.Track, error) {
	track, err := scanTrackFields(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return track, nil
}

func scanTrackRow(rows *sql.Rows) (*model.Track, error) {
	return scanTrackFields(rows)
}
