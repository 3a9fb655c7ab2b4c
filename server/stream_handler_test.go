package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"TuneBay/core/events"
	"TuneBay/model"
	"TuneBay/storage"

	"github.com/gorilla/mux"
)

// fakeTrackRepo 只实现流式回放路径需要的目录查询
type fakeTrackRepo struct {
	tracks map[string]*model.Track
}

func (f *fakeTrackRepo) LogTrack(ctx context.Context, track *model.Track) error {
	f.tracks[track.ID] = track
	return nil
}

func (f *fakeTrackRepo) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	return f.tracks[id], nil
}

func (f *fakeTrackRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := f.tracks[id]
	return ok, nil
}

func (f *fakeTrackRepo) SetCustomMetadata(ctx context.Context, id string, customTitle, customArtist *string) (*model.Track, error) {
	return f.tracks[id], nil
}

func (f *fakeTrackRepo) SearchTracks(ctx context.Context, query string) ([]*model.Track, error) {
	return nil, nil
}

func (f *fakeTrackRepo) DeleteTrack(ctx context.Context, id string) error {
	delete(f.tracks, id)
	return nil
}

func (f *fakeTrackRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.tracks)), nil
}

type fakeDownloadRepo struct {
	records map[string]*model.DownloadRecord
}

func (f *fakeDownloadRepo) LogDownload(ctx context.Context, rec *model.DownloadRecord) error {
	f.records[rec.TrackID] = rec
	return nil
}

func (f *fakeDownloadRepo) GetRecord(ctx context.Context, trackID string) (*model.DownloadRecord, error) {
	return f.records[trackID], nil
}

func (f *fakeDownloadRepo) IsDownloaded(ctx context.Context, trackID string) (bool, error) {
	_, ok := f.records[trackID]
	return ok, nil
}

func (f *fakeDownloadRepo) DeleteRecord(ctx context.Context, trackID string) error {
	delete(f.records, trackID)
	return nil
}

func (f *fakeDownloadRepo) ListTrackIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeDownloadRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

// fakeBlobStore 内存对象存储，Open 支持字节区间
type fakeBlobStore struct {
	data map[string][]byte
}

func (f *fakeBlobStore) Put(ctx context.Context, trackID string, r io.Reader, size int64, contentType string) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	f.data[trackID] = data
	return storage.ObjectKey(trackID), int64(len(data)), nil
}

func (f *fakeBlobStore) Locate(ctx context.Context, trackID string) (string, error) {
	if _, ok := f.data[trackID]; !ok {
		return "", errors.New("no such object")
	}
	return storage.ObjectKey(trackID), nil
}

func (f *fakeBlobStore) Stat(ctx context.Context, trackID string) (*storage.ObjectInfo, error) {
	data, ok := f.data[trackID]
	if !ok {
		return nil, nil
	}
	return &storage.ObjectInfo{
		TrackID: trackID,
		Path:    storage.ObjectKey(trackID),
		Size:    int64(len(data)),
	}, nil
}

func (f *fakeBlobStore) Open(ctx context.Context, trackID string, start, end int64) (io.ReadCloser, error) {
	data, ok := f.data[trackID]
	if !ok {
		return nil, errors.New("no such object")
	}
	if end < 0 || end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	if start > end {
		return nil, errors.New("invalid range")
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, trackID string) error {
	delete(f.data, trackID)
	return nil
}

func (f *fakeBlobStore) ListAll(ctx context.Context) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for id, data := range f.data {
		out = append(out, storage.ObjectInfo{TrackID: id, Path: storage.ObjectKey(id), Size: int64(len(data))})
	}
	return out, nil
}

func (f *fakeBlobStore) Stats(ctx context.Context) (*storage.BucketStats, error) {
	stats := &storage.BucketStats{}
	for _, data := range f.data {
		stats.TotalObjects++
		stats.TotalSize += int64(len(data))
	}
	return stats, nil
}

// testAudio 生成可按字节核对的测试内容
func testAudio(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// newStreamFixture 构造一条已采集完成的曲目及其配套路由
func newStreamFixture(t *testing.T, audio []byte) (*mux.Router, *fakeTrackRepo, *fakeDownloadRepo, *fakeBlobStore) {
	t.Helper()

	tracks := &fakeTrackRepo{tracks: map[string]*model.Track{
		"trk-1": {ID: "trk-1", Title: "Song"},
	}}
	downloads := &fakeDownloadRepo{records: map[string]*model.DownloadRecord{}}
	blobs := &fakeBlobStore{data: map[string][]byte{}}

	if audio != nil {
		blobs.data["trk-1"] = audio
		downloads.records["trk-1"] = &model.DownloadRecord{
			TrackID:     "trk-1",
			BlobPath:    storage.ObjectKey("trk-1"),
			FileSize:    int64(len(audio)),
			ContentType: "audio/mpeg",
		}
	}

	h := NewAPIHandler(nil, tracks, downloads, nil, blobs, events.NopNotifier{}, nil, nil)
	router := mux.NewRouter()
	router.HandleFunc("/api/audio/stream/{track_id}", h.StreamTrackHandler).Methods("GET")
	return router, tracks, downloads, blobs
}

func TestStreamUnknownTrack(t *testing.T) {
	router, _, _, _ := newStreamFixture(t, testAudio(1000))

	req := httptest.NewRequest("GET", "/api/audio/stream/no-such-track", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestStreamNotYetDownloaded(t *testing.T) {
	// 曲目已知但音频尚未采集完成：503 而不是 404
	router, _, _, _ := newStreamFixture(t, nil)

	req := httptest.NewRequest("GET", "/api/audio/stream/trk-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestStreamFullObject(t *testing.T) {
	audio := testAudio(1000)
	router, _, _, _ := newStreamFixture(t, audio)

	req := httptest.NewRequest("GET", "/api/audio/stream/trk-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg", got)
	}
	if got := rr.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if got := rr.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("Content-Length = %q, want 1000", got)
	}
	if !bytes.Equal(rr.Body.Bytes(), audio) {
		t.Error("body does not match stored object")
	}
}

func TestStreamPartialContent(t *testing.T) {
	audio := testAudio(1000)
	router, _, _, _ := newStreamFixture(t, audio)

	req := httptest.NewRequest("GET", "/api/audio/stream/trk-1", nil)
	req.Header.Set("Range", "bytes=100-199")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q, want bytes 100-199/1000", got)
	}
	if got := rr.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q, want 100", got)
	}
	if !bytes.Equal(rr.Body.Bytes(), audio[100:200]) {
		t.Error("body does not match requested byte range")
	}
}

func TestStreamOpenEndedRange(t *testing.T) {
	audio := testAudio(1000)
	router, _, _, _ := newStreamFixture(t, audio)

	req := httptest.NewRequest("GET", "/api/audio/stream/trk-1", nil)
	req.Header.Set("Range", "bytes=900-")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 900-999/1000" {
		t.Errorf("Content-Range = %q, want bytes 900-999/1000", got)
	}
	if !bytes.Equal(rr.Body.Bytes(), audio[900:]) {
		t.Error("body does not match open-ended byte range")
	}
}

func TestStreamMalformedRangeFallsBackToFull(t *testing.T) {
	audio := testAudio(1000)
	router, _, _, _ := newStreamFixture(t, audio)

	for _, header := range []string{
		"bytes=-500",          // 后缀区间不支持
		"bytes=0-99,200-299",  // 多区间不支持
		"bytes=abc-def",       // 非法数字
		"items=0-99",          // 非法单位
		"bytes=1000-",         // 起点越界
		"bytes=200-100",       // 终点小于起点
	} {
		req := httptest.NewRequest("GET", "/api/audio/stream/trk-1", nil)
		req.Header.Set("Range", header)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Range %q: status = %d, want 200 full fallback", header, rr.Code)
		}
		if !bytes.Equal(rr.Body.Bytes(), audio) {
			t.Errorf("Range %q: body is not the full object", header)
		}
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		total      int64
		start, end int64
		ok         bool
	}{
		{"", 1000, 0, 0, false},
		{"bytes=0-499", 1000, 0, 499, true},
		{"bytes=100-199", 1000, 100, 199, true},
		{"bytes=500-", 1000, 500, 999, true},
		{"bytes=0-0", 1000, 0, 0, true},
		{"bytes=999-1200", 1000, 999, 999, true}, // 终点越界时收敛到末尾
		{"bytes=0-", 1000, 0, 999, true},
		{"bytes=1000-", 1000, 0, 0, false},
		{"bytes=-500", 1000, 0, 0, false},
		{"bytes=0-99,200-299", 1000, 0, 0, false},
		{"bytes=abc-def", 1000, 0, 0, false},
		{"bytes=200-100", 1000, 0, 0, false},
		{"bytes=0-499", 0, 0, 0, false},
	}

	for _, tt := range tests {
		start, end, ok := parseRange(tt.header, tt.total)
		if ok != tt.ok || (ok && (start != tt.start || end != tt.end)) {
			t.Errorf("parseRange(%q, %d) = (%d, %d, %v), want (%d, %d, %v)",
				tt.header, tt.total, start, end, ok, tt.start, tt.end, tt.ok)
		}
	}
}
