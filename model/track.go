package model

import "time"

// Track represents a catalog entry for one piece of audio, independent of
// whether its bytes have been acquired yet.
type Track struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist,omitempty"`
	Duration     float64   `json:"duration,omitempty"` // seconds, 0 when unknown
	CustomTitle  *string   `json:"customTitle,omitempty"`
	CustomArtist *string   `json:"customArtist,omitempty"`
	SourceURL    string    `json:"sourceUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayTitle 返回展示用标题，用户自定义值优先于采集源提供的值
func (t *Track) DisplayTitle() string {
	if t.CustomTitle != nil && *t.CustomTitle != "" {
		return *t.CustomTitle
	}
	return t.Title
}

// DisplayArtist 返回展示用艺术家，用户自定义值优先于采集源提供的值
func (t *Track) DisplayArtist() string {
	if t.CustomArtist != nil && *t.CustomArtist != "" {
		return *t.CustomArtist
	}
	return t.Artist
}
