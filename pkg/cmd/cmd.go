// Package cmd holds named commands behind middleware chains. It knows nothing
// about Discord; internal/command puts interaction data into Invocation.Data.
package cmd

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
)

type Invocation struct {
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Middleware decorates a command, usually through Wrap.
type Middleware func(Command) Command

// Apply wraps c with mws in order; the last middleware ends up outermost.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

type wrapped struct {
	Command
	run func(ctx context.Context, inv *Invocation) error
}

func (w *wrapped) Run(ctx context.Context, inv *Invocation) error { return w.run(ctx, inv) }

// Wrap keeps c's name and description but runs run instead.
func Wrap(c Command, run func(ctx context.Context, inv *Invocation) error) Command {
	return &wrapped{Command: c, run: run}
}

// Root returns the command underneath every Wrap, where optional interfaces
// such as slash definitions live.
func Root(c Command) Command {
	for {
		w, ok := c.(*wrapped)
		if !ok {
			return c
		}
		c = w.Command
	}
}

// Registry is a name-keyed set of commands; a later Register replaces an
// earlier one with the same name.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: map[string]Command{}}
}

func (r *Registry) Register(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[c.Name()] = c
}

// Get returns nil for unknown names.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[name]
}

// All returns the commands ordered by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	list := slices.Collect(maps.Values(r.commands))
	r.mu.RUnlock()
	slices.SortFunc(list, func(a, b Command) int { return cmp.Compare(a.Name(), b.Name()) })
	return list
}
