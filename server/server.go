package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TuneBay/cache"
	"TuneBay/config"
	"TuneBay/core/events"
	"TuneBay/core/pipeline"
	"TuneBay/core/source"
	"TuneBay/db"
	"TuneBay/logger"
	"TuneBay/repository"
	"TuneBay/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server, plus an in-process worker
// pool when WORKER_COUNT > 0. Additional workers may run as separate
// processes via the `worker` command; claim exclusivity lives in the
// database, not in this process.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	// 设置服务器超时
	server := &http.Server{
		Addr:        cfg.ListenAddr,
		ReadTimeout: 30 * time.Second,
		// 音频流响应可能远超普通请求，写超时放宽
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// 初始化 MinIO 客户端
	if err := storage.InitMinio(cfg); err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database with GORM: %v", err)
	}
	defer db.CloseGormDB()

	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer db.CloseRedis()
	log.Println("Successfully connected to Redis")

	// Initialize database schema
	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	queueRepo := repository.NewMySQLQueueRepository()
	trackRepo := repository.NewMySQLTrackRepository()
	downloadRepo := repository.NewMySQLDownloadRepository()
	playlistRepo := repository.NewGormPlaylistRepository(db.GormDB)
	blobStore := storage.NewMinioBlobStore(storage.GetMinioClient(), cfg.MinioBucket)
	notifier := events.NewRedisNotifier(db.RedisClient)
	searchCache := cache.NewSearchCache(db.RedisClient, 30*time.Second)

	// 初始化处理器
	apiHandler := NewAPIHandler(queueRepo, trackRepo, downloadRepo, playlistRepo, blobStore, notifier, searchCache, cfg)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 下载队列相关的API端点
	router.HandleFunc("/api/queue", apiHandler.EnqueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/status", apiHandler.QueueStatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/queue/clear", apiHandler.ClearQueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/queue/jobs/{id}", apiHandler.GetJobHandler).Methods(http.MethodGet)

	// 音频流端点，支持 Range 请求
	router.HandleFunc("/api/audio/stream/{track_id}", apiHandler.StreamTrackHandler).Methods(http.MethodGet)

	// 曲目目录相关的API端点
	router.HandleFunc("/api/search", apiHandler.SearchTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/upload", apiHandler.UploadTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/downloads", apiHandler.DownloadsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{track_id}/metadata", apiHandler.SetMetadataHandler).Methods(http.MethodPatch)
	router.HandleFunc("/api/tracks/{track_id}", apiHandler.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{track_id}", apiHandler.DeleteTrackHandler).Methods(http.MethodDelete)

	// 喜欢与播放列表端点
	router.HandleFunc("/api/likes/toggle", apiHandler.ToggleLikeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/likes", apiHandler.LikesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists", apiHandler.PlaylistsHandler).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/api/playlists/{id}", apiHandler.PlaylistHandler).Methods(http.MethodGet, http.MethodDelete)
	router.HandleFunc("/api/playlists/{id}/tracks", apiHandler.PlaylistTracksHandler).Methods(http.MethodPost, http.MethodDelete)

	// 存储维护端点
	router.HandleFunc("/api/storage/stats", apiHandler.StorageStatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/storage/reconcile", apiHandler.ReconcileHandler).Methods(http.MethodPost)

	// 实时事件推送
	router.HandleFunc("/api/events", apiHandler.EventsHandler)

	server.Handler = router

	// worker 池与 HTTP 服务共享一个根 context
	rootCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	workerDone := make(chan struct{})
	if cfg.WorkerCount > 0 {
		worker := pipeline.NewWorker(
			queueRepo, trackRepo, downloadRepo, blobStore,
			source.NewClient(cfg.ResolverURL), notifier,
			cfg.FetchTimeout, cfg.PollInterval, cfg.WorkerCount,
		)
		go func() {
			defer close(workerDone)
			worker.Run(rootCtx)
		}()
	} else {
		close(workerDone)
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		log.Printf("Server starting on %s...", cfg.ListenAddr)
		log.Println("Enqueue downloads via POST to /api/queue")
		log.Println("Check queue via GET /api/queue/status")
		log.Println("Stream tracks via GET /api/audio/stream/{track_id}")
		log.Println("Live updates via WebSocket at /api/events")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号
	<-stop
	log.Println("Shutting down server...")
	stopWorkers()

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// 等待 worker 池退出，不在任务处理中途终止进程
	<-workerDone

	log.Println("Server stopped")
}
