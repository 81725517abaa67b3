package command

import (
	"context"
	"testing"

	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

type fakeCommand struct {
	ran       interface{}
	component bool
}

func (f *fakeCommand) Name() string             { return "fake" }
func (f *fakeCommand) Description() string      { return "Fake command" }
func (f *fakeCommand) Group() string            { return "tests" }
func (f *fakeCommand) Category() string         { return "Testing" }
func (f *fakeCommand) UserPermissions() []int64 { return nil }
func (f *fakeCommand) Run(ctx context.Context, data interface{}) error {
	f.ran = data
	return nil
}
func (f *fakeCommand) Component(ctx context.Context, c *ComponentInteractionContext) error {
	f.component = true
	return nil
}
func (f *fakeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: f.Name(), Description: f.Description()}
}

func TestAdapterRoutesComponents(t *testing.T) {
	f := &fakeCommand{}
	a := &DiscordAdapter{Cmd: f}

	slash := &SlashInteractionContext{}
	if err := a.Run(context.Background(), &cmd.Invocation{Data: slash}); err != nil {
		t.Fatal(err)
	}
	if f.ran != slash {
		t.Fatal("slash context not passed to Run")
	}
	if err := a.Run(context.Background(), &cmd.Invocation{Data: &ComponentInteractionContext{}}); err != nil {
		t.Fatal(err)
	}
	if !f.component {
		t.Fatal("component context not routed to Component")
	}
	if def := a.SlashDefinition(); def == nil || def.Name != "fake" {
		t.Fatalf("SlashDefinition = %+v", def)
	}
}

func TestRegisterCommandKeepsMeta(t *testing.T) {
	reg := cmd.NewRegistry()
	RegisterCommand(reg, &fakeCommand{})
	c := reg.Get("fake")
	if c == nil {
		t.Fatal("command not registered")
	}
	meta, ok := cmd.Root(c).(DiscordMeta)
	if !ok || meta.Group() != "tests" {
		t.Fatalf("meta = %v, %v", meta, ok)
	}
}

func TestInteractionUser(t *testing.T) {
	member := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "1"}},
	}}
	if u := InteractionUser(member); u.ID != "1" {
		t.Fatalf("member user = %s", u.ID)
	}
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "2"}}}
	if u := InteractionUser(dm); u.ID != "2" {
		t.Fatalf("dm user = %s", u.ID)
	}
	if u := InteractionUser(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}); u.ID != "unknown" {
		t.Fatalf("fallback user = %s", u.ID)
	}
}
