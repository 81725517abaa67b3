package cmd

import (
	"context"
	"strings"
	"testing"
)

type echo struct {
	name string
	out  *[]string
}

func (e *echo) Name() string        { return e.name }
func (e *echo) Description() string { return "echo " + e.name }
func (e *echo) Run(ctx context.Context, inv *Invocation) error {
	*e.out = append(*e.out, e.name+":"+inv.Data.(string))
	return nil
}

func tag(label string, out *[]string) Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			*out = append(*out, label)
			return c.Run(ctx, inv)
		})
	}
}

func TestApplyOrderAndRoot(t *testing.T) {
	var out []string
	base := &echo{name: "music", out: &out}
	c := Apply(base, tag("inner", &out), tag("outer", &out))

	if err := c.Run(context.Background(), &Invocation{Data: "play"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"outer", "inner", "music:play"}
	if strings.Join(out, "|") != strings.Join(want, "|") {
		t.Fatalf("order = %v, want %v", out, want)
	}
	if Root(c) != Command(base) {
		t.Fatal("Root did not reach the base command")
	}
	if c.Name() != "music" || c.Description() != "echo music" {
		t.Fatalf("wrapper identity = %q, %q", c.Name(), c.Description())
	}
}

func TestRegistry(t *testing.T) {
	var out []string
	r := NewRegistry()
	r.Register(&echo{name: "zeta", out: &out})
	r.Register(&echo{name: "alpha", out: &out})
	r.Register(&echo{name: "zeta", out: &out})

	if r.Get("alpha") == nil || r.Get("missing") != nil {
		t.Fatal("Get returned the wrong command")
	}
	all := r.All()
	if len(all) != 2 || all[0].Name() != "alpha" || all[1].Name() != "zeta" {
		t.Fatalf("All = %v", all)
	}
}
