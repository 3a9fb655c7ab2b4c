package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"TuneBay/db"
	"TuneBay/model"
)

func TestValidateLocator(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		wantErr bool
	}{
		{"合法的 https URL", "https://example.com/watch?v=abc", false},
		{"合法的 http URL", "http://example.com/a.mp3", false},
		{"搜索词", "artist song name", false},
		{"带空白的搜索词", "  hello world  ", false},
		{"空字符串", "", true},
		{"纯空白", "   ", true},
		{"无主机的 URL", "https://", true},
		{"无主机的 http URL", "http:///path", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocator(tt.locator)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLocator(%q) error = %v, wantErr %v", tt.locator, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLocator) {
				t.Errorf("error %v is not ErrInvalidLocator", err)
			}
		})
	}
}

// testQueueRepo 连接集成测试数据库。未设置 TUNEBAY_TEST_DSN 时跳过。
// DSN 需要带 parseTime=true，例如：
//
//	root:password@tcp(127.0.0.1:3306)/tunebay_test?parseTime=true
func testQueueRepo(t *testing.T) *mysqlQueueRepository {
	t.Helper()

	dsn := os.Getenv("TUNEBAY_TEST_DSN")
	if dsn == "" {
		t.Skip("TUNEBAY_TEST_DSN not set, skipping database test")
	}

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping test database: %v", err)
	}

	db.DB = conn
	if err := db.InitDB(); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	if _, err := conn.Exec("DELETE FROM download_jobs"); err != nil {
		t.Fatalf("clean download_jobs: %v", err)
	}
	t.Cleanup(func() {
		conn.Exec("DELETE FROM download_jobs")
		conn.Close()
	})

	return &mysqlQueueRepository{DB: conn}
}

func TestClaimExclusivity(t *testing.T) {
	repo := testQueueRepo(t)
	ctx := context.Background()

	idA, err := repo.Enqueue(ctx, "https://example.com/a", "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	idB, err := repo.Enqueue(ctx, "https://example.com/b", "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// 每条 pending 任务只能被认领一次
	seen := make(map[string]bool)
	for i := 0; i < 2; i++ {
		job, err := repo.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if job == nil {
			t.Fatalf("claim %d returned nil with pending jobs remaining", i)
		}
		if job.Status != model.JobStatusProcessing {
			t.Errorf("claimed job status = %s, want processing", job.Status)
		}
		if seen[job.ID] {
			t.Fatalf("job %s claimed twice", job.ID)
		}
		seen[job.ID] = true
	}
	if !seen[idA] || !seen[idB] {
		t.Errorf("claims %v did not cover both jobs", seen)
	}

	// 队列空时返回 (nil, nil)，不是错误
	job, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim on empty queue: %v", err)
	}
	if job != nil {
		t.Errorf("claimed %s from an empty queue", job.ID)
	}
}

func TestConcurrentClaimSingleJob(t *testing.T) {
	repo := testQueueRepo(t)
	ctx := context.Background()

	if _, err := repo.Enqueue(ctx, "https://example.com/contested", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// 对同一条 pending 任务并发认领，恰好一个调用方拿到任务
	const racers = 8
	results := make(chan *model.DownloadJob, racers)
	errs := make(chan error, racers)
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			job, err := repo.ClaimNext(ctx)
			if err != nil {
				errs <- err
				return
			}
			results <- job
		}()
	}
	close(gate)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("claim: %v", err)
	}

	var claimed int
	for job := range results {
		if job != nil {
			claimed++
		}
	}
	if claimed != 1 {
		t.Fatalf("job claimed %d times, want exactly 1", claimed)
	}
}

func TestClaimOrderIsFIFO(t *testing.T) {
	repo := testQueueRepo(t)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, "https://example.com/first", "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// created_at 精度为秒，隔开一秒保证入队顺序可观测
	time.Sleep(1100 * time.Millisecond)
	if _, err := repo.Enqueue(ctx, "https://example.com/second", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job == nil || job.ID != first {
		t.Errorf("claimed %+v, want the earliest pending job %s", job, first)
	}
}

func TestStatusTransitions(t *testing.T) {
	repo := testQueueRepo(t)
	ctx := context.Background()

	jobID, err := repo.Enqueue(ctx, "https://example.com/a", "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// pending 状态不允许直接进入终态
	if err := repo.MarkCompleted(ctx, jobID, "trk-1"); !errors.Is(err, ErrClaimConflict) {
		t.Errorf("MarkCompleted on pending job: error = %v, want ErrClaimConflict", err)
	}

	if _, err := repo.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkCompleted(ctx, jobID, "trk-1"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	job, err := repo.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != model.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.TrackID == nil || *job.TrackID != "trk-1" {
		t.Errorf("track id = %v, want trk-1", job.TrackID)
	}

	// 终态不可再迁移
	if err := repo.MarkFailed(ctx, jobID, "late failure"); !errors.Is(err, ErrClaimConflict) {
		t.Errorf("MarkFailed on completed job: error = %v, want ErrClaimConflict", err)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	repo := testQueueRepo(t)
	ctx := context.Background()

	jobID, err := repo.Enqueue(ctx, "https://example.com/a", "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.ClaimNext(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkFailed(ctx, jobID, "acquisition failed: resolver down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	job, err := repo.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if job.Error == nil || *job.Error != "acquisition failed: resolver down" {
		t.Errorf("error = %v, want recorded reason", job.Error)
	}
}

func TestClearKeepsProcessingAndCompleted(t *testing.T) {
	repo := testQueueRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Enqueue(ctx, "https://example.com/a", ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	// 一条进行中，一条失败，一条保持 pending
	processing, err := repo.ClaimNext(ctx)
	if err != nil || processing == nil {
		t.Fatalf("claim: %v", err)
	}
	failed, err := repo.ClaimNext(ctx)
	if err != nil || failed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.MarkFailed(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	removed, err := repo.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2 (pending + failed)", removed)
	}

	status, err := repo.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Processing != 1 || status.Pending != 0 || status.Failed != 0 {
		t.Errorf("status after clear = %+v, want only the processing job left", status)
	}
}

func TestGetJobUnknown(t *testing.T) {
	repo := testQueueRepo(t)

	job, err := repo.GetJob(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job != nil {
		t.Errorf("got %+v for unknown id, want nil", job)
	}
}
