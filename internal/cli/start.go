package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"groupquiz/internal/config"
	"groupquiz/internal/server"
)

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), *configPath)
		},
	}
}

func runServer(ctx context.Context, configPath string) error {
	c := defaultConfig()
	if err := config.Load(configPath, &c); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s, err := server.Init(ctx, c)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	err = s.Start(ctx)
	s.Shutdown()
	if err != nil {
		slog.ErrorContext(ctx, "server: exited with error", "error", err)
	}
	return err
}

func defaultConfig() server.Config {
	var c server.Config
	c.HTTP.Port = 8080
	c.Quiz.JoinWindowSeconds = 60
	c.Quiz.DefaultQuestionSeconds = 30
	c.Quiz.MinQuestionSeconds = 5
	c.Gateway.Mode = "telegram"
	return c
}
