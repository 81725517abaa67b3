package middleware

import (
	"context"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

// WithGuildOnly rejects interactions sent from direct messages.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			s, e, _, ok := command.Interaction(inv.Data)
			if ok && e.GuildID == "" {
				deny(s, e, "This command only works in a server.")
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}
