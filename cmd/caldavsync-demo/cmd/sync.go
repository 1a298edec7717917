package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"caldavsync/ical"
	"caldavsync/internal/config"
	"caldavsync/internal/credentials"
	"caldavsync/internal/davproto"
	"caldavsync/internal/httpx"
	"caldavsync/internal/tui"
	"caldavsync/internal/xlog"
	"caldavsync/provider"
	"caldavsync/source"
)

func newSyncCmd(stdout, stderr io.Writer, rc *RunConfig) *cobra.Command {
	var watch bool
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass (or a continuous loop with --watch)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), rc, stdout, stderr, watch, noTUI)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep syncing on the configured poll interval instead of running once")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "print plain progress lines instead of the interactive TUI")
	return cmd
}

func runSync(ctx context.Context, rc *RunConfig, stdout, stderr io.Writer, watch, noTUI bool) error {
	cfg, err := config.Load(rc.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := xlog.New(stderr, "info")

	dataDir := rc.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(config.GetDataDir(), "store")
	}
	local, skipped, err := source.OpenOrCreate(dataDir)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	for _, name := range skipped {
		logger.Warn().Str("calendar", name).Msg("skipped unreadable local calendar file")
	}

	if rc.ServerURL == "" || rc.Username == "" {
		return fmt.Errorf("--server-url and --username are required")
	}

	manager := credentials.NewManager("caldavsync-demo")
	cred, err := manager.Get(ctx, rc.Username)
	if err != nil {
		return fmt.Errorf("get credentials: %w", err)
	}
	if !cred.Found {
		return fmt.Errorf("no stored credentials for %s; run 'caldavsync-demo credentials set %s' first", rc.Username, rc.Username)
	}

	httpTimeout, err := cfg.HTTPTimeoutDuration()
	if err != nil {
		return fmt.Errorf("parse http_timeout: %w", err)
	}
	httpClient := httpx.NewClient(httpx.Config{Timeout: httpTimeout})
	davClient := davproto.NewClient(httpClient, davproto.Credentials{Username: rc.Username, Password: cred.Password})

	codec := ical.NewCodec(cfg.Organisation, cfg.Product)
	remote := source.NewDav(davClient, codec, rc.ServerURL)
	if err := remote.Discover(ctx); err != nil {
		return fmt.Errorf("discover calendars: %w", err)
	}

	p := provider.New(local, remote,
		provider.WithLogger(logger),
		provider.WithBatchSize(cfg.BatchSize),
	)

	runOnce := func() error {
		report, err := p.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		if saveErr := local.Save(); saveErr != nil {
			return fmt.Errorf("save local store: %w", saveErr)
		}
		if !report.Success {
			for _, calErr := range report.CalendarErrors {
				_, _ = fmt.Fprintf(stderr, "calendar %s: %v\n", calErr.URL, calErr.Err)
			}
			return fmt.Errorf("sync finished with errors")
		}
		return nil
	}

	if !noTUI {
		model := tui.New(ctx, p.Progress())
		program := tea.NewProgram(model, tea.WithOutput(stdout))
		go func() {
			if err := runOnce(); err != nil {
				logger.Error().Err(err).Msg("sync failed")
			}
		}()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("run TUI: %w", err)
		}
	} else if err := runOnce(); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	interval, err := cfg.PollIntervalDuration()
	if err != nil {
		return fmt.Errorf("parse poll_interval: %w", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := runOnce(); err != nil {
				logger.Error().Err(err).Msg("sync failed")
			}
		}
	}
}
