// Package pipeline provides the rule execution infrastructure.
package pipeline

import (
	"sync"
	"time"

	tv "github.com/tissguard/validator"
	"github.com/tissguard/validator/tree"
)

// Context holds all state needed while running the rule set over one tree.
// It is passed to every rule and must be treated as read-only by rules.
//
// Context instances are pooled for efficiency. Use AcquireContext() and
// Release() to manage them properly.
type Context struct {
	// Tree is the normalized document, envelope or guide
	Tree *tree.Node

	// Settings holds the per-call rule toggles
	Settings tv.Settings

	// Pass tells what kind of tree is being validated
	Pass Pass

	// Now is the reference instant for date rules
	Now time.Time

	// Options holds the engine options
	Options *tv.Options

	// Metrics receives lookup counts from rules; may be nil
	Metrics *tv.Metrics

	// Result accumulates findings
	Result *tv.Result

	// Facts is shared by every pass of one streamed document; nil otherwise
	Facts *Facts
}

var contextPool = sync.Pool{
	New: func() any {
		return &Context{}
	},
}

// AcquireContext gets a Context from the pool.
// Call Release() when done to return it to the pool.
func AcquireContext() *Context {
	ctx := contextPool.Get().(*Context)
	ctx.Reset()
	return ctx
}

// Release returns the Context to the pool.
// After calling Release, the Context should not be used.
func (c *Context) Release() {
	if c == nil {
		return
	}
	c.Reset()
	contextPool.Put(c)
}

// Reset clears the context for reuse.
func (c *Context) Reset() {
	*c = Context{}
}

// NewContext creates a Context (non-pooled) for a tree.
// Prefer AcquireContext() on hot paths.
func NewContext(root *tree.Node, settings tv.Settings) *Context {
	return &Context{
		Tree:     root,
		Settings: settings,
		Pass:     PassDocument,
		Now:      time.Now(),
		Options:  tv.DefaultOptions(),
	}
}

// Derive returns a pooled context for another tree sharing this
// context's settings, clock, options and metrics. The caller must set
// Result and release it.
func (c *Context) Derive(root *tree.Node, pass Pass) *Context {
	d := AcquireContext()
	d.Tree = root
	d.Pass = pass
	d.Settings = c.Settings
	d.Now = c.Now
	d.Options = c.Options
	d.Metrics = c.Metrics
	d.Facts = c.Facts
	return d
}

// RecordLookup forwards a reference lookup outcome to the metrics, if any.
func (c *Context) RecordLookup(found bool) {
	if c.Metrics != nil {
		c.Metrics.RecordLookup(found)
	}
}

// Clock returns the configured clock, falling back to time.Now.
func (c *Context) Clock() time.Time {
	if !c.Now.IsZero() {
		return c.Now
	}
	if c.Options != nil && c.Options.Clock != nil {
		return c.Options.Clock()
	}
	return time.Now()
}

// LookupConcurrency returns the bound for concurrent store lookups.
func (c *Context) LookupConcurrency() int {
	if c.Options != nil && c.Options.LookupConcurrency > 0 {
		return c.Options.LookupConcurrency
	}
	return 1
}
