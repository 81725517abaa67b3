package discord

import (
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Discord allows roughly 50 requests per second per bot; command writes stay
// well below that.
const commandWriteInterval = time.Second / 40

// commandAPI is the part of *discordgo.Session used to sync commands.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// registerCommands syncs a guild's slash commands, re-creating only those
// whose definition hash changed.
func (b *Bot) registerCommands(guildID string) error {
	return b.syncCommands(guildID, false)
}

// syncCommands deletes remote commands that are gone or belong to a disabled
// group, and creates the rest. force ignores the cached hashes.
func (b *Bot) syncCommands(guildID string, force bool) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}
	remote, err := b.api.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}
	hashes, err := b.storage.CommandHashes(guildID)
	if err != nil {
		return err
	}
	if force {
		hashes = map[string]string{}
	}

	wanted := b.wantedCommands(guildID)
	wantedNames := make(map[string]struct{}, len(wanted))
	for _, d := range wanted {
		wantedNames[d.Name] = struct{}{}
	}

	var errs []error
	present := make(map[string]struct{}, len(remote))
	for _, rc := range remote {
		if _, ok := wantedNames[rc.Name]; ok {
			present[rc.Name] = struct{}{}
			continue
		}
		b.log.Info("Deleting command", zap.String("guild", guildID), zap.String("command", rc.Name))
		if err := b.api.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", rc.Name, err))
			continue
		}
		delete(hashes, rc.Name)
	}

	for _, d := range wanted {
		h := hashCommand(d)
		if _, ok := present[d.Name]; ok && hashes[d.Name] == h {
			continue
		}
		if err := b.limiter.Wait(b.ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := b.api.ApplicationCommandCreate(appID, guildID, d); err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", d.Name, err))
			continue
		}
		hashes[d.Name] = h
		b.log.Info("Registered command", zap.String("guild", guildID), zap.String("command", d.Name))
	}

	if err := b.storage.SetCommandHashes(guildID, hashes); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// wantedCommands returns the definitions of every registered command whose
// group is enabled in the guild.
func (b *Bot) wantedCommands(guildID string) []*discordgo.ApplicationCommand {
	disabled, err := b.storage.GetDisabledGroups(guildID)
	if err != nil {
		b.log.Warn("Failed to read disabled groups", zap.String("guild", guildID), zap.Error(err))
	}
	off := make(map[string]bool, len(disabled))
	for _, g := range disabled {
		off[g] = true
	}

	var defs []*discordgo.ApplicationCommand
	for _, c := range b.registry.All() {
		if meta, ok := cmd.Root(c).(command.DiscordMeta); ok && off[meta.Group()] {
			continue
		}
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// commandDefinition walks through middleware wrappers to the command's
// slash definition.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

func (b *Bot) appID() (string, error) {
	if b.session.State != nil && b.session.State.User != nil && b.session.State.User.ID != "" {
		return b.session.State.User.ID, nil
	}
	u, err := b.session.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

// hashCommand returns a SHA-1 of the fields Discord stores for a command.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]interface{}{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]interface{} {
	out := make([]map[string]interface{}, len(opts))
	for i, o := range opts {
		entry := map[string]interface{}{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if o.MinValue != nil {
			entry["min_value"] = *o.MinValue
		}
		if o.MaxValue != 0 {
			entry["max_value"] = o.MaxValue
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]interface{}, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]interface{}{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
