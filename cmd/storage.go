package cmd

import (
	"context"
	"fmt"
	"log"

	"TuneBay/config"
	"TuneBay/db"
	"TuneBay/repository"
	"TuneBay/storage"

	"github.com/spf13/cobra"
)

var storageReconcile bool

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "对象存储管理",
	Long:  `查看音频对象存储的统计信息，或回收没有目录记录的孤儿对象。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		ctx := context.Background()
		blobStore := storage.NewMinioBlobStore(storage.GetMinioClient(), cfg.MinioBucket)

		if storageReconcile {
			if err := db.ConnectDB(cfg); err != nil {
				log.Fatalf("无法连接到数据库: %v", err)
			}
			defer db.DB.Close()

			ids, err := repository.NewMySQLDownloadRepository().ListTrackIDs(ctx)
			if err != nil {
				log.Fatalf("读取下载记录失败: %v", err)
			}
			validIDs := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				validIDs[id] = struct{}{}
			}

			deleted, err := storage.Reconcile(ctx, blobStore, validIDs, cfg.ReconcileGrace)
			if err != nil {
				log.Fatalf("回收孤儿对象失败: %v", err)
			}
			fmt.Printf("已回收 %d 个孤儿对象\n", deleted)
			return
		}

		stats, err := blobStore.Stats(ctx)
		if err != nil {
			log.Fatalf("统计存储桶失败: %v", err)
		}
		fmt.Println("存储桶统计:")
		fmt.Printf("  对象数量: %d\n", stats.TotalObjects)
		fmt.Printf("  总大小: %s\n", formatSize(stats.TotalSize))
	},
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func init() {
	storageCmd.Flags().BoolVar(&storageReconcile, "reconcile", false, "回收没有目录记录的孤儿对象")
	rootCmd.AddCommand(storageCmd)
}
