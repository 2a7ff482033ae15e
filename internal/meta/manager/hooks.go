package manager

import "github.com/conduit-lang/metanode/internal/meta/metanode"

// HookType is a cache lifecycle event
type HookType int

const (
	// HookTracked runs when a metanode enters the scene cache
	HookTracked HookType = iota
	// HookUntracked runs when a metanode leaves the scene cache. The host
	// node may already be gone.
	HookUntracked
)

// String returns the string representation of the hook type
func (h HookType) String() string {
	switch h {
	case HookTracked:
		return "tracked"
	case HookUntracked:
		return "untracked"
	default:
		return "unknown"
	}
}

// HookFunc receives the metanode a lifecycle event is about
type HookFunc func(n *metanode.Node)

// Hooks holds lifecycle hooks by type, in registration order
type Hooks struct {
	hooks map[HookType][]HookFunc
}

func newHooks() *Hooks {
	return &Hooks{hooks: make(map[HookType][]HookFunc)}
}

// Register adds a hook
func (h *Hooks) Register(hookType HookType, fn HookFunc) {
	h.hooks[hookType] = append(h.hooks[hookType], fn)
}

// HasHooks returns true if any hook is registered for the type
func (h *Hooks) HasHooks(hookType HookType) bool {
	return len(h.hooks[hookType]) > 0
}

func (h *Hooks) run(hookType HookType, n *metanode.Node) {
	for _, fn := range h.hooks[hookType] {
		fn(n)
	}
}
