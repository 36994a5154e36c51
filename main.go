package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/broomate/roomie/internal/config"
	"github.com/broomate/roomie/internal/logger"
	"github.com/broomate/roomie/internal/ui"
	"github.com/broomate/roomie/internal/verify"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "version", "-v", "--version":
		fmt.Printf("Roomie v%s\n", version)
		return
	case "help", "-h", "--help":
		printHelp()
		return
	case "", "unread", "verify":
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printHelp()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(logger.Config{Path: cfg.Log.Path, Level: cfg.Log.Level})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	// Decoders without an injected logger write through the global one.
	zap.ReplaceGlobals(log)

	switch cmd {
	case "verify":
		err = runVerify(cfg, log, os.Args[2:])
	case "unread":
		err = runUnread(cfg, log)
	default:
		err = runUI(cfg, log)
	}
	if err != nil {
		log.Error("exiting", zap.String("command", cmd), zap.Error(err))
		closeLog()
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("ROOMIE_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath()
}

func runUI(cfg config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := start(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	svc := app.Services()
	p := tea.NewProgram(ui.NewApp(&svc), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// runUnread fetches the conversation list once and prints what is unread.
func runUnread(cfg config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := build(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout+5*time.Second)
	defer cancel()
	if err := app.directory.Start(ctx); err != nil {
		return err
	}

	snap := app.directory.Snapshot()
	fmt.Printf("%d unread conversations\n", snap.UnreadCount)
	for _, c := range snap.Conversations {
		if snap.UnreadConversationIDs.Has(c.ID) {
			fmt.Printf("  %s  %s\n", c.ID, c.DisplayName())
		}
	}
	return nil
}

func runVerify(cfg config.Config, log *zap.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: roomie verify <image>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, "failed to read image")
	}

	client := verify.New(verify.Config{
		Mode:    verify.Mode(cfg.Verify.Mode),
		BaseURL: cfg.Verify.BaseURL,
		APIKey:  cfg.Verify.APIKey,
		Timeout: cfg.Verify.Timeout,
	}, log)

	res := client.Verify(context.Background(), filepath.Base(args[0]), data)
	if res.IsOriginal {
		fmt.Printf("✓ original: %s\n", res.Reason)
		return nil
	}
	fmt.Printf("✗ rejected: %s\n", res.Reason)
	if res.StolenSource != "" {
		fmt.Printf("  found at %s\n", res.StolenSource)
	}
	return nil
}

func printHelp() {
	help := `Roomie - Terminal inbox for Roomie matches and messages

Usage:
  roomie                 Start the inbox
  roomie unread          Print unread conversations and exit
  roomie verify <image>  Check a listing photo for reuse or AI generation
  roomie version         Show version information
  roomie help            Show this help message

Navigation:
  ↑/↓ or j/k        Navigate lists
  Enter             Select/Open item
  ESC               Go back
  q                 Quit from current view
  ctrl+c            Force quit

Menu:
  💬 Inbox          Conversations, unread ones marked with ●
  🔔 Notifications  Swipes and matches from this session

Inbox:
  /                 Search conversations
  u                 Toggle unread only
  r                 Refresh conversation list

Messages:
  n or c            Compose new message
  r                 Reload the conversation
  ctrl+s            Send message (while composing)
  ↑/↓ or j/k        Scroll messages

Notifications:
  enter             Open the match conversation
  d                 Dismiss notification
  a                 Mark all as read

Configuration:
  ~/.roomie/config.yml (or $ROOMIE_CONFIG). ROOMIE_TOKEN, ROOMIE_USER_ID,
  ROOMIE_API_URL and ROOMIE_BROKER_URL override the file.
  Logs are written to ~/.roomie/roomie.log.
`
	fmt.Print(help)
}
