package cmd

import (
	"fmt"
	"os"

	"TuneBay/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tunebay",
	Short: "TuneBay is a self-hosted audio library manager.",
	Run: func(cmd *cobra.Command, args []string) {
		// 默认行为：启动HTTP服务器
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
