package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ollama-bridge/internal/config"
	"ollama-bridge/internal/process"
	"ollama-bridge/internal/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bridge service",
	Long:  `Start the bridge in the foreground, serving the local model API on the configured port.`,
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)

	cfg := config.FromEnv()

	srv, err := server.New(cfg, logger, Version)
	if err != nil {
		return err
	}

	color.Green("Starting %s v%s on %s:%d...", AppName, Version, cfg.Host, cfg.Port)

	procMgr := process.NewManager(baseDir)
	if err := procMgr.WritePID(); err != nil {
		return err
	}
	defer procMgr.CleanupPID()

	return srv.Start()
}
