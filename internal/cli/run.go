package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/usherbot/usherbot/internal/bot"
	"github.com/usherbot/usherbot/internal/bridge"
	"github.com/usherbot/usherbot/internal/bus"
	"github.com/usherbot/usherbot/internal/config"
	"github.com/usherbot/usherbot/internal/mail"
	"github.com/usherbot/usherbot/internal/meeting"
	"github.com/usherbot/usherbot/internal/notify"
	"github.com/usherbot/usherbot/internal/remote"
	"github.com/usherbot/usherbot/internal/scheduler"
	"github.com/usherbot/usherbot/internal/timeline"
)

var (
	runResume    bool
	runRetention time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Join the meeting driver and start moderating",
	RunE:  runBot,
}

func init() {
	runCmd.Flags().BoolVar(&runResume, "resume", false, "Start with the automation flags saved by the last run")
	runCmd.Flags().DurationVar(&runRetention, "audit-retention", 30*24*time.Hour, "Prune audit events older than this (0 keeps everything)")
}

func runBot(cmd *cobra.Command, args []string) error {
	printHeader("UsherBot")

	// 1. Load config
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	// 2. Single instance
	lock := scheduler.NewFileLock(cfg.Paths.LockFile)
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, scheduler.ErrLocked) {
			fmt.Println("Another UsherBot is already running for this data directory.")
		}
		return err
	}
	defer lock.Release()

	// 3. Audit trail
	timeSvc, err := timeline.NewTimelineService(cfg.Paths.AuditDB)
	if err != nil {
		return fmt.Errorf("audit db: %w", err)
	}
	defer timeSvc.Close()
	if runRetention > 0 {
		if n, err := timeSvc.Prune(time.Now().Add(-runRetention)); err != nil {
			slog.Warn("Audit prune failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned audit events", "count", n)
		}
	}
	if runResume {
		resumeFlags(cfg, timeSvc)
	}

	// 4. Bus and notice subscribers
	msgBus := bus.NewMessageBus()
	msgBus.Subscribe(timeSvc.Record)
	if n := notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL, cfg.Bot.Name); n.Enabled() {
		msgBus.Subscribe(n.Handle)
		slog.Info("Slack notifications enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Meeting driver
	roster := meeting.NewRoster()
	driver := bridge.NewClient(cfg.Bridge.DriverURL, cfg.Bridge.AuthToken, cfg.Bridge.Timeout)
	server := bridge.NewServer(roster, msgBus, cfg.Bridge.AuthToken)
	go func() {
		if err := server.ListenAndServe(ctx, cfg.Bridge.ListenAddr); err != nil {
			slog.Error("Event listener failed", "addr", cfg.Bridge.ListenAddr, "error", err)
			stop()
		}
	}()

	// 6. Remote command sources
	sources := []remote.Source{remote.NewFileSource(cfg.Paths.CommandFile)}
	if cfg.Remote.Kafka.Enabled {
		ks := remote.NewKafkaSource(cfg.Remote.Kafka.Brokers, cfg.Remote.Kafka.Topic, cfg.Remote.Kafka.GroupID)
		if err := ks.Start(ctx); err != nil {
			slog.Warn("Kafka commands disabled", "error", err)
		} else {
			defer ks.Close()
			sources = append(sources, ks)
		}
	}

	// 7. Bot
	b := bot.New(bot.Options{
		Config:     cfg,
		ConfigPath: cfgPath,
		Roster:     roster,
		Controller: driver,
		Speaker:    driver,
		Bus:        msgBus,
		Sources:    sources,
		Mailer:     mail.NewSender(cfg.Mail),
		Settings:   timeSvc,
		LogLevel:   logLevel,
	})
	fmt.Printf("Moderating as %s (flags: %s)\n", cfg.Bot.Name, b.Modes().Flags())
	if err := b.Run(ctx); err != nil {
		return err
	}
	fmt.Println("UsherBot stopped.")
	return nil
}

// resumeFlags replaces the configured automation flags with the last saved
// ones, when there are any.
func resumeFlags(cfg *config.Config, settings *timeline.TimelineService) {
	saved, err := settings.GetSetting("automation")
	if err != nil || saved == "" {
		return
	}
	if err := cfg.Bot.Automation.Decode(saved); err != nil {
		slog.Warn("Saved automation flags invalid", "value", saved, "error", err)
		return
	}
	slog.Info("Resumed automation flags", "flags", cfg.Bot.Automation.String())
}
