package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/jobmgr"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const jobsDrainTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and serve music commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := cfg.RequireToken(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Player loops outlive the signal so the bot can tear them down in
		// order; the jobs context is cancelled after Run returns.
		jobsCtx, stopJobs := context.WithCancel(context.Background())
		defer stopJobs()
		jobs := jobmgr.NewManager(jobsCtx, func(e jobmgr.Event) {
			log.Debug("Job state changed",
				zap.String("job", e.Job),
				zap.Stringer("state", e.State),
				zap.Error(e.Err))
		})

		store, err := storage.New(cfg.StoragePath, log.Named("storage"))
		if err != nil {
			return err
		}
		defer store.Close()

		c, err := newCache(ctx, cfg, jobs, log.Named("cache"))
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := newResolver(cfg, c, log)
		if err != nil {
			return err
		}

		bot, err := discord.New(discord.Options{
			Config:   cfg,
			Storage:  store,
			Resolver: res,
			Jobs:     jobs,
			Logger:   log,
		})
		if err != nil {
			return err
		}

		log.Info("Starting jukebox", zap.Int("guild_records", len(store.Guilds())))
		runErr := bot.Run(ctx)

		stopJobs()
		wctx, cancel := context.WithTimeout(context.Background(), jobsDrainTimeout)
		defer cancel()
		if err := jobs.Wait(wctx); err != nil {
			log.Warn("Background jobs still running at exit", zap.Strings("jobs", jobs.List()))
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
