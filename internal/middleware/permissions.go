package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

var permissionNames = map[int64]string{
	discordgo.PermissionAdministrator:    "Administrator",
	discordgo.PermissionManageServer:     "Manage Server",
	discordgo.PermissionManageChannels:   "Manage Channels",
	discordgo.PermissionVoiceConnect:     "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:       "Speak",
	discordgo.PermissionVoiceMoveMembers: "Move Members",
}

// WithUserPermissionCheck requires the member to hold every permission the
// command declares. Administrators pass unconditionally.
func WithUserPermissionCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			s, e, _, ok := command.Interaction(inv.Data)
			meta, hasMeta := cmd.Root(c).(command.DiscordMeta)
			if !ok || !hasMeta || len(meta.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}

			var granted int64
			if e.Member != nil {
				granted = e.Member.Permissions
			}
			if missing := missingPermissions(granted, meta.UserPermissions()); len(missing) > 0 {
				deny(s, e, fmt.Sprintf("You need the following permissions: %s", strings.Join(missing, ", ")))
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}

func missingPermissions(granted int64, required []int64) []string {
	if granted&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	var missing []string
	for _, p := range required {
		if granted&p == p {
			continue
		}
		name, ok := permissionNames[p]
		if !ok {
			name = fmt.Sprintf("0x%x", p)
		}
		missing = append(missing, name)
	}
	return missing
}
