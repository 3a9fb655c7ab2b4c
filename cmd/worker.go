package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"TuneBay/config"
	"TuneBay/core/events"
	"TuneBay/core/pipeline"
	"TuneBay/core/source"
	"TuneBay/db"
	"TuneBay/logger"
	"TuneBay/repository"
	"TuneBay/storage"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "启动采集Worker进程",
	Long: `独立运行的采集Worker池：认领队列中的下载任务，从采集源拉取音频，
写入对象存储与曲目目录。可以与服务器进程并行扩展多个实例，
认领排他性由数据库保证。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		logger.InitLogger(logger.Config{
			Level:      cfg.LogLevel,
			OutputPath: cfg.LogPath,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("无法连接到数据库: %v", err)
		}
		defer db.DB.Close()
		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer db.CloseRedis()
		if err := db.InitDB(); err != nil {
			log.Fatalf("初始化数据库失败: %v", err)
		}

		worker := pipeline.NewWorker(
			repository.NewMySQLQueueRepository(),
			repository.NewMySQLTrackRepository(),
			repository.NewMySQLDownloadRepository(),
			storage.NewMinioBlobStore(storage.GetMinioClient(), cfg.MinioBucket),
			source.NewClient(cfg.ResolverURL),
			events.NewRedisNotifier(db.RedisClient),
			cfg.FetchTimeout, cfg.PollInterval, cfg.WorkerCount,
		)

		ctx, cancel := context.WithCancel(context.Background())
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-stop
			log.Println("Shutting down worker...")
			cancel()
		}()

		worker.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
