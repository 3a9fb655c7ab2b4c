package cmd

import (
	"TuneBay/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动TuneBay服务器",
	Long:  `启动TuneBay音频库的HTTP服务器，提供队列、流媒体与存储维护API。`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
