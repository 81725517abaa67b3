// Package command adapts Discord interactions to the cmd core.
package command

import (
	"context"

	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// SlashInteractionContext is passed as Invocation.Data for slash commands.
type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

// ComponentInteractionContext is passed for buttons and select menus.
type ComponentInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// ComponentInteractionHandler receives interactions whose custom ID starts
// with the command name followed by a colon.
type ComponentInteractionHandler interface {
	Component(ctx context.Context, c *ComponentInteractionContext) error
}

// DiscordMeta lets middleware read grouping and permissions without
// knowing the concrete command type.
type DiscordMeta interface {
	Group() string
	Category() string
	UserPermissions() []int64
}

// DiscordCommand is implemented by individual Discord commands. data is one
// of the *Context types in this package.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	UserPermissions() []int64
	Run(ctx context.Context, data interface{}) error
}

// DiscordAdapter makes a DiscordCommand a cmd.Command and forwards the
// optional provider interfaces.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string            { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string         { return a.Cmd.Category() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	if cc, ok := inv.Data.(*ComponentInteractionContext); ok {
		return a.Component(ctx, cc)
	}
	return a.Cmd.Run(ctx, inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (a *DiscordAdapter) Component(ctx context.Context, c *ComponentInteractionContext) error {
	if ch, ok := a.Cmd.(ComponentInteractionHandler); ok {
		return ch.Component(ctx, c)
	}
	return nil
}

// RegisterCommand adds discordCmd to reg behind mws.
func RegisterCommand(reg *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) {
	reg.Register(cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...))
}

// Interaction returns the interaction event behind a Discord invocation.
func Interaction(data interface{}) (*discordgo.Session, *discordgo.InteractionCreate, *storage.Storage, bool) {
	switch v := data.(type) {
	case *SlashInteractionContext:
		return v.Session, v.Event, v.Storage, true
	case *ComponentInteractionContext:
		return v.Session, v.Event, v.Storage, true
	default:
		return nil, nil, nil, false
	}
}

// InteractionUser returns the member's user in guilds and the DM user
// otherwise.
func InteractionUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}
