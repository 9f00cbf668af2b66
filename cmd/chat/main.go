package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/zhouzirui/z-chat/backend/internal/client"
	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/logging"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/z-chat/backend/internal/service/session"
	"github.com/zhouzirui/z-chat/backend/internal/widget"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "z-chat:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin *os.File, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("z-chat", pflag.ContinueOnError)
	config.RegisterWidgetFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadWidget(flagSet)
	if err != nil {
		return err
	}

	interactive := !cfg.Plain && term.IsTerminal(int(stdin.Fd()))
	closeLog, err := setupLogging(cfg, interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	storage := session.NewFileStorage(cfg.CookieFile)
	userID, err := session.EnsureIdentifier(storage)
	if err != nil {
		return fmt.Errorf("session identifier: %w", err)
	}
	log.Info().
		Str("component", "widget").
		Str("user", userID).
		Str("endpoint", cfg.Endpoint).
		Str("cookie_file", storage.Path()).
		Msg("chat widget starting")

	completer := client.New(cfg.Endpoint, client.WithTimeout(cfg.Timeout))
	ctrl := conversation.NewController(userID, chat.Seed()...)

	if !interactive {
		err := widget.RunLines(ctx, ctrl, completer, stdin, stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	program := tea.NewProgram(
		widget.NewModel(ctx, ctrl, completer),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(stdin),
		tea.WithOutput(stdout),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// setupLogging 终端界面下日志不能写到屏幕上：写入 --log-file，否则丢弃。
func setupLogging(cfg config.WidgetConfig, interactive bool) (func(), error) {
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logging.Setup(f, cfg.LogLevel, true)
		return func() { _ = f.Close() }, nil
	}
	if interactive {
		logging.Discard()
		return func() {}, nil
	}
	logging.Setup(os.Stderr, cfg.LogLevel, false)
	return func() {}, nil
}
