package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slopsbot/bot"
	"slopsbot/config"
	"slopsbot/handlers"
	"slopsbot/model"
	"slopsbot/scanner"
	"slopsbot/utils"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "slopsbot",
		Short:         "Hands out pun achievement roles from message reactions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultConfigFile+")")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Run one role expiry sweep and exit",
		RunE:  runSweep,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("slopsbot exited with an error")
		os.Exit(1)
	}
}

func loadConfig() (*model.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	utils.SetupLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := bot.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("error creating bot: %w", err)
	}
	defer b.Close()

	handlers.Register(b)

	return b.Run()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	// REST calls do not need an open gateway connection.
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return err
	}
	store, err := bot.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := scanner.NewRoleRemover(session, store, cfg.GrantTTL).Sweep(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"checked": report.Checked,
		"expired": report.Expired,
		"removed": report.Removed,
		"failed":  report.Failed,
	}).Info("Role sweep finished")
	return nil
}
