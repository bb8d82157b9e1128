package auth

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Lifecycle attaches the auth interceptor to a transport and rebinds it
// whenever the sign-out hook changes. At most one instance is attached.
type Lifecycle struct {
	transport Transport
	store     TokenStore
	refresher Refresher
	opts      []CoordinatorOption

	mu      sync.Mutex
	current *registration
}

type registration struct {
	id    int
	ic    *Interceptor
	once  sync.Once
	owner *Lifecycle
}

// NewLifecycle creates a manager with nothing attached yet.
func NewLifecycle(transport Transport, store TokenStore, refresher Refresher, opts ...CoordinatorOption) *Lifecycle {
	return &Lifecycle{
		transport: transport,
		store:     store,
		refresher: refresher,
		opts:      opts,
	}
}

// Register attaches a new interceptor, with its own coordinator, that calls
// signOut. Any previously registered instance is detached first. The returned
// function detaches exactly this instance and may be called more than once.
func (l *Lifecycle) Register(signOut SignOutFunc) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		l.current.detach()
	}

	coord := NewCoordinator(l.transport, l.store, l.refresher, signOut, l.opts...)
	ic := NewInterceptor(coord, signOut)
	reg := &registration{ic: ic, owner: l}
	reg.id = l.transport.Use(ic)
	l.current = reg
	log.Debug().Int("interceptor_id", reg.id).Msg("Auth interceptor registered")

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		reg.detach()
		if l.current == reg {
			l.current = nil
		}
	}
}

// Coordinator returns the coordinator of the attached instance, or nil.
func (l *Lifecycle) Coordinator() *Coordinator {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	return l.current.ic.Coordinator()
}

func (r *registration) detach() {
	r.once.Do(func() {
		r.owner.transport.Eject(r.id)
		log.Debug().Int("interceptor_id", r.id).Msg("Auth interceptor unregistered")
	})
}
