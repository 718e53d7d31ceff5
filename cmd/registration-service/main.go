package main

import (
	"fmt"
	"os"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"

	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     *config.Config
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "registration-service",
	Short: "Event participant registration service",
	Long:  `Registers event participants, tracks check-in and payment, and keeps per-event counters.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			config.LoadDotEnv(envFile)
		} else {
			config.LoadDotEnv()
		}
		cfg = config.Load()

		l, err := logger.NewLogger(logger.Options{
			Service: "registration-service",
			Dir:     cfg.Log.Dir,
			Level:   logger.ParseLevel(cfg.Log.Level),
		})
		if err != nil {
			return err
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is ./.env)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
