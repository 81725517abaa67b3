package middleware

import (
	"context"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"

	"go.uber.org/zap"
)

// WithGroupAccessCheck stops commands whose group is disabled in the guild.
func WithGroupAccessCheck(log *zap.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			s, e, store, ok := command.Interaction(inv.Data)
			meta, hasMeta := cmd.Root(c).(command.DiscordMeta)
			if !ok || !hasMeta || store == nil || meta.Group() == "" || e.GuildID == "" {
				return c.Run(ctx, inv)
			}

			disabled, err := store.IsGroupDisabled(e.GuildID, meta.Group())
			if err != nil {
				log.Warn("Group check failed", zap.String("command", c.Name()), zap.Error(err))
				return c.Run(ctx, inv)
			}
			if disabled {
				deny(s, e, "This command is disabled on this server.\nUse `/maintenance toggle` to enable it again.")
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}
