package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fluffy",
	Short: "Fluffy lead pipeline",
	Long:  `Fluffy harvests quiet WhatsApp sessions from the shared cache, qualifies them with an AI model chain, and syncs the resulting leads to every connected destination.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()

		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fluffy/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("server.port", config.DefaultServerPort, "health server port")
	rootCmd.PersistentFlags().String("cache.addr", config.DefaultCacheAddr, "session cache address")
	rootCmd.PersistentFlags().String("scheduler.schedule", config.DefaultSchedulerSchedule, "cycle schedule (cron spec or @every syntax)")
}
