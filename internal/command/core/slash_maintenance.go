// Package core holds bot administration commands.
package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// Sessions reports guilds with a live voice session.
type Sessions interface {
	Guilds() []string
}

type MaintenanceCommand struct {
	Sessions Sessions
	// Commands lists what status and toggle report on.
	Commands *cmd.Registry
	// Refresh re-syncs the guild's slash commands after a group toggle.
	Refresh func(guildID string) error
}

func (c *MaintenanceCommand) Name() string        { return "maintenance" }
func (c *MaintenanceCommand) Description() string { return "Bot maintenance commands" }
func (c *MaintenanceCommand) Group() string       { return "core" }
func (c *MaintenanceCommand) Category() string    { return "⚙️ Settings" }
func (c *MaintenanceCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageServer}
}

func (c *MaintenanceCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "ping", Description: "Check bot latency"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "Show bot status for this server"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "log", Description: "Show recent commands"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "toggle",
				Description: "Enable or disable a command group",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "group", Description: "Command group", Required: true},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Enable the group", Required: true},
				},
			},
		},
	}
}

func (c *MaintenanceCommand) Run(ctx context.Context, data interface{}) error {
	v, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := v.Session, v.Event

	options := e.ApplicationCommandData().Options
	if len(options) == 0 {
		return command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "No subcommand provided."})
	}

	sub := options[0]
	var embed *discordgo.MessageEmbed
	switch sub.Name {
	case "ping":
		embed = &discordgo.MessageEmbed{
			Title:       "Pong! 🏓",
			Description: fmt.Sprintf("Latency: %dms", s.HeartbeatLatency().Milliseconds()),
		}
	case "status":
		embed = c.status(v.Storage, e.GuildID)
	case "log":
		embed = commandLog(v.Storage, e.GuildID)
	case "toggle":
		opts := command.Options(sub.Options)
		embed = c.toggle(v.Storage, e.GuildID, opts["group"].StringValue(), opts["enabled"].BoolValue())
	default:
		embed = &discordgo.MessageEmbed{Description: fmt.Sprintf("Unknown subcommand: %s", sub.Name)}
	}
	embed.Color = command.EmbedColor
	return command.RespondEmbedEphemeral(s, e, embed)
}

func (c *MaintenanceCommand) status(store *storage.Storage, guildID string) *discordgo.MessageEmbed {
	active := false
	var sessions int
	if c.Sessions != nil {
		guilds := c.Sessions.Guilds()
		sessions = len(guilds)
		for _, g := range guilds {
			active = active || g == guildID
		}
	}

	disabled, _ := store.GetDisabledGroups(guildID)
	settings, _ := store.GetMusicSettings(guildID)

	return &discordgo.MessageEmbed{
		Title: "Status",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Voice sessions", Value: fmt.Sprintf("%d total, this server: %s", sessions, yesNo(active))},
			{Name: "Disabled groups", Value: orNone(strings.Join(disabled, ", "))},
			{Name: "Music", Value: fmt.Sprintf("Embed size: `%s`\nDefault volume: `%d`", orNone(settings.EmbedSize), settings.DefaultVolume)},
			{Name: "Commands", Value: orNone(commandList(c.Commands, disabled))},
		},
	}
}

func commandLog(store *storage.Storage, guildID string) *discordgo.MessageEmbed {
	history, err := store.GetCommandsHistory(guildID)
	if err != nil {
		return &discordgo.MessageEmbed{Description: fmt.Sprintf("Failed to load history: %v", err)}
	}
	if len(history) == 0 {
		return &discordgo.MessageEmbed{Title: "Command log", Description: "No commands recorded yet."}
	}

	var b strings.Builder
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		fmt.Fprintf(&b, "<t:%d:R> **%s** `/%s`\n", h.Datetime.Unix(), h.Username, h.Command)
	}
	return &discordgo.MessageEmbed{Title: "Command log", Description: b.String()}
}

func (c *MaintenanceCommand) toggle(store *storage.Storage, guildID, group string, enabled bool) *discordgo.MessageEmbed {
	group = strings.ToLower(strings.TrimSpace(group))
	if !knownGroup(c.Commands, group) {
		return &discordgo.MessageEmbed{Description: fmt.Sprintf("Unknown command group `%s`.", group)}
	}
	if group == "core" {
		return &discordgo.MessageEmbed{Description: "The core group cannot be disabled."}
	}

	var err error
	if enabled {
		err = store.EnableGroup(guildID, group)
	} else {
		err = store.DisableGroup(guildID, group)
	}
	if err != nil {
		return &discordgo.MessageEmbed{Description: fmt.Sprintf("Failed to update group: %v", err)}
	}
	if c.Refresh != nil {
		if err := c.Refresh(guildID); err != nil {
			return &discordgo.MessageEmbed{Description: fmt.Sprintf("Group updated but commands were not refreshed: %v", err)}
		}
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return &discordgo.MessageEmbed{Description: fmt.Sprintf("Command group `%s` is now %s.", group, state)}
}

// commandList renders registered commands by category, marking those whose
// group is disabled.
func commandList(reg *cmd.Registry, disabled []string) string {
	if reg == nil {
		return ""
	}
	var metas []command.DiscordMeta
	var names []string
	for _, c := range reg.All() {
		if meta, ok := cmd.Root(c).(command.DiscordMeta); ok {
			metas = append(metas, meta)
			names = append(names, c.Name())
		}
	}
	idx := make([]int, len(metas))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return config.CategoryWeight(metas[idx[a]].Category()) < config.CategoryWeight(metas[idx[b]].Category())
	})

	var b strings.Builder
	for _, i := range idx {
		state := ""
		if slices.Contains(disabled, metas[i].Group()) {
			state = " (disabled)"
		}
		fmt.Fprintf(&b, "%s `/%s`%s\n", metas[i].Category(), names[i], state)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func knownGroup(reg *cmd.Registry, group string) bool {
	if reg == nil {
		return false
	}
	for _, c := range reg.All() {
		if meta, ok := cmd.Root(c).(command.DiscordMeta); ok && meta.Group() == group {
			return true
		}
	}
	return false
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
