package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ollama-bridge/internal/config"
	"ollama-bridge/internal/process"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge service status",
	Run: func(_ *cobra.Command, _ []string) {
		procMgr := process.NewManager(baseDir)
		cfg := config.FromEnv()

		if !procMgr.IsRunning() {
			color.Red("Not running")
			color.White("Start with: %s start", AppName)

			return
		}

		pid, _ := procMgr.ReadPID()
		color.Green("Running")
		color.White("PID: %d", pid)
		color.White("Endpoint: http://%s:%d", cfg.Host, cfg.Port)
	},
}
