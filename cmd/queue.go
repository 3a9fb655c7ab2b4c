package cmd

import (
	"context"
	"fmt"
	"log"

	"TuneBay/config"
	"TuneBay/db"
	"TuneBay/repository"

	"github.com/spf13/cobra"
)

var queueClear bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "下载队列管理",
	Long:  `查看下载队列状态，或清理 pending 与 failed 的任务。进行中与已完成的任务不会被清理。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("无法连接到数据库: %v", err)
		}
		defer db.DB.Close()

		ctx := context.Background()
		queueRepo := repository.NewMySQLQueueRepository()

		if queueClear {
			removed, err := queueRepo.Clear(ctx)
			if err != nil {
				log.Fatalf("清理队列失败: %v", err)
			}
			fmt.Printf("已清理 %d 条任务\n", removed)
			return
		}

		status, err := queueRepo.Status(ctx)
		if err != nil {
			log.Fatalf("查询队列状态失败: %v", err)
		}
		fmt.Println("队列状态:")
		fmt.Printf("  pending:    %d\n", status.Pending)
		fmt.Printf("  processing: %d\n", status.Processing)
		fmt.Printf("  completed:  %d\n", status.Completed)
		fmt.Printf("  failed:     %d\n", status.Failed)
	},
}

func init() {
	queueCmd.Flags().BoolVar(&queueClear, "clear", false, "清理 pending 与 failed 的任务")
	rootCmd.AddCommand(queueCmd)
}
