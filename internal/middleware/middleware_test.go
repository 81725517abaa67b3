package middleware

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/keshon/jukebox/datastore"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type stubCommand struct {
	runs  int
	perms []int64
}

func (p *stubCommand) Name() string             { return "music" }
func (p *stubCommand) Description() string      { return "stub command" }
func (p *stubCommand) Group() string            { return "music" }
func (p *stubCommand) Category() string         { return "Music" }
func (p *stubCommand) UserPermissions() []int64 { return p.perms }
func (p *stubCommand) Run(ctx context.Context, data interface{}) error {
	p.runs++
	return nil
}

func captureDenials(t *testing.T) *[]string {
	t.Helper()
	var got []string
	orig := deny
	deny = func(_ *discordgo.Session, _ *discordgo.InteractionCreate, msg string) { got = append(got, msg) }
	t.Cleanup(func() { deny = orig })
	return &got
}

func slashEvent(guildID string, perms int64) *command.SlashInteractionContext {
	return &command.SlashInteractionContext{
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: "c1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "alice"}, Permissions: perms},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "music",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "play", Type: discordgo.ApplicationCommandOptionSubCommand},
				},
			},
		}},
	}
}

func newStorage(t *testing.T) *storage.Storage {
	t.Helper()
	cfg := datastore.DefaultConfig(filepath.Join(t.TempDir(), "ds.json"))
	cfg.AutoSaveInterval = 0
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ds.Close() })
	return storage.NewWithStore(ds)
}

func run(t *testing.T, c cmd.Command, data interface{}) {
	t.Helper()
	if err := c.Run(context.Background(), &cmd.Invocation{Data: data}); err != nil {
		t.Fatal(err)
	}
}

func TestGuildOnly(t *testing.T) {
	denied := captureDenials(t)
	p := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: p}, WithGuildOnly())

	run(t, c, slashEvent("", 0))
	if p.runs != 0 || len(*denied) != 1 {
		t.Fatalf("DM: runs = %d, denied = %v", p.runs, *denied)
	}
	run(t, c, slashEvent("g1", 0))
	if p.runs != 1 {
		t.Fatalf("guild: runs = %d", p.runs)
	}
}

func TestGroupAccessCheck(t *testing.T) {
	denied := captureDenials(t)
	store := newStorage(t)
	p := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: p}, WithGroupAccessCheck(zap.NewNop()))

	ev := slashEvent("g1", 0)
	ev.Storage = store
	run(t, c, ev)
	if p.runs != 1 {
		t.Fatalf("enabled: runs = %d", p.runs)
	}

	_ = store.DisableGroup("g1", "music")
	run(t, c, ev)
	if p.runs != 1 || len(*denied) != 1 {
		t.Fatalf("disabled: runs = %d, denied = %v", p.runs, *denied)
	}
}

func TestUserPermissionCheck(t *testing.T) {
	denied := captureDenials(t)
	p := &stubCommand{perms: []int64{discordgo.PermissionManageServer}}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: p}, WithUserPermissionCheck())

	run(t, c, slashEvent("g1", discordgo.PermissionVoiceConnect))
	if p.runs != 0 || len(*denied) != 1 {
		t.Fatalf("missing perms: runs = %d, denied = %v", p.runs, *denied)
	}
	run(t, c, slashEvent("g1", discordgo.PermissionManageServer))
	run(t, c, slashEvent("g1", discordgo.PermissionAdministrator))
	if p.runs != 2 {
		t.Fatalf("runs = %d, want 2", p.runs)
	}
}

func TestCommandLoggerRecordsHistory(t *testing.T) {
	store := newStorage(t)
	p := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: p}, WithCommandLogger(zap.NewNop()))

	ev := slashEvent("g1", 0)
	ev.Storage = store
	run(t, c, ev)

	hist, err := store.GetCommandsHistory("g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Command != "music play" || hist[0].Username != "alice" {
		t.Fatalf("history = %+v", hist)
	}
}
