package repository

import (
	"context"

	"TuneBay/model"

	"gorm.io/gorm"
)

// PlaylistRepository 播放列表与喜欢标记的数据访问接口
type PlaylistRepository interface {
	// 播放列表 CRUD
	CreatePlaylist(ctx context.Context, name string) (*model.Playlist, error)
	GetAllPlaylists(ctx context.Context) ([]*model.Playlist, error)
	GetPlaylistByID(ctx context.Context, id int64) (*model.Playlist, error)
	DeletePlaylist(ctx context.Context, id int64) error

	// 播放列表曲目
	AddTrack(ctx context.Context, playlistID int64, trackID string) error
	RemoveTrack(ctx context.Context, playlistID int64, trackID string) error
	GetTrackIDs(ctx context.Context, playlistID int64) ([]string, error)

	// 喜欢标记
	ToggleLike(ctx context.Context, trackID string) (bool, error)
	LikedTrackIDs(ctx context.Context) ([]string, error)
	CountPlaylists(ctx context.Context) (int64, error)
}

// gormPlaylistRepository GORM 实现
type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository 创建 GORM 播放列表仓库
func NewGormPlaylistRepository(db *gorm.DB) PlaylistRepository {
	return &gormPlaylistRepository{db: db}
}

// CreatePlaylist 创建播放列表
func (r *gormPlaylistRepository) CreatePlaylist(ctx context.Context, name string) (*model.Playlist, error) {
	playlist := &model.Playlist{Name: name}
	if err := r.db.WithContext(ctx).Create(playlist).Error; err != nil {
		return nil, err
	}
	return playlist, nil
}

// GetAllPlaylists 返回全部播放列表
func (r *gormPlaylistRepository) GetAllPlaylists(ctx context.Context) ([]*model.Playlist, error) {
	var playlists []*model.Playlist
	err := r.db.WithContext(ctx).Order("id").Find(&playlists).Error
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

// GetPlaylistByID 按ID获取播放列表，未找到返回 (nil, nil)
func (r *gormPlaylistRepository) GetPlaylistByID(ctx context.Context, id int64) (*model.Playlist, error) {
	var playlist model.Playlist
	err := r.db.WithContext(ctx).First(&playlist, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &playlist, nil
}

// DeletePlaylist 删除播放列表，曲目关联级联清除
func (r *gormPlaylistRepository) DeletePlaylist(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Playlist{}, id).Error
}

// AddTrack 将曲目加入播放列表，重复加入是幂等的
func (r *gormPlaylistRepository) AddTrack(ctx context.Context, playlistID int64, trackID string) error {
	assoc := &model.PlaylistTrack{PlaylistID: playlistID, TrackID: trackID}
	err := r.db.WithContext(ctx).Create(assoc).Error
	if err == gorm.ErrDuplicatedKey {
		return nil
	}
	return err
}

// RemoveTrack 将曲目移出播放列表
func (r *gormPlaylistRepository) RemoveTrack(ctx context.Context, playlistID int64, trackID string) error {
	return r.db.WithContext(ctx).
		Where("playlist_id = ? AND track_id = ?", playlistID, trackID).
		Delete(&model.PlaylistTrack{}).Error
}

// GetTrackIDs 返回播放列表中的曲目ID，按加入时间升序
func (r *gormPlaylistRepository) GetTrackIDs(ctx context.Context, playlistID int64) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.PlaylistTrack{}).
		Where("playlist_id = ?", playlistID).
		Order("added_at ASC").
		Pluck("track_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ToggleLike 切换喜欢标记，返回切换后的状态
func (r *gormPlaylistRepository) ToggleLike(ctx context.Context, trackID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("track_id = ?", trackID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	if count > 0 {
		err = r.db.WithContext(ctx).
			Where("track_id = ?", trackID).
			Delete(&model.Like{}).Error
		return false, err
	}

	err = r.db.WithContext(ctx).Create(&model.Like{TrackID: trackID}).Error
	return err == nil, err
}

// LikedTrackIDs 返回全部被喜欢的曲目ID，按标记时间升序
func (r *gormPlaylistRepository) LikedTrackIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Like{}).
		Order("liked_at ASC").
		Pluck("track_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountPlaylists 返回播放列表总数
func (r *gormPlaylistRepository) CountPlaylists(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Playlist{}).Count(&count).Error
	return count, err
}
