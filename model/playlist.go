package model

import "time"

// Playlist 播放列表
type Playlist struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Playlist) TableName() string {
	return "playlists"
}

// PlaylistTrack 播放列表与曲目的关联
type PlaylistTrack struct {
	PlaylistID int64     `json:"playlistId" gorm:"primaryKey"`
	TrackID    string    `json:"trackId" gorm:"primaryKey;size:64"`
	AddedAt    time.Time `json:"addedAt" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (PlaylistTrack) TableName() string {
	return "playlist_tracks"
}

// Like 喜欢标记，随曲目删除级联清除
type Like struct {
	TrackID string    `json:"trackId" gorm:"primaryKey;column:track_id;size:64"`
	LikedAt time.Time `json:"likedAt" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Like) TableName() string {
	return "likes"
}
