package channel

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("channel not found")

// Registry is the shared collection of monitored channels.
//
// Structural mutations (Add/Remove/Clear/Update) are serialized under a single
// lock; All() returns a snapshot slice so the dispatcher can iterate without
// ever observing a half-mutated collection. Every structural mutation fires
// the injected onChange hook, which in practice is the debounced persistence
// request.
type Registry struct {
	mu   sync.Mutex
	list []*State
	byID map[string]*State

	onChange func()
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]*State{}}
}

// SetOnChange installs the structural-mutation hook (debounced save request).
// Call before the dispatcher starts; the hook must be non-blocking.
func (r *Registry) SetOnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Add registers a channel. A missing id is assigned; ids are stable and never
// reused. Returns an error if the id is already present.
func (r *Registry) Add(st *State) error {
	if st == nil {
		return errors.New("nil channel")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if _, ok := r.byID[st.ID]; ok {
		return errors.New("channel id already registered: " + st.ID)
	}
	if st.AddedAt.IsZero() {
		st.AddedAt = time.Now()
	}
	r.list = append(r.list, st)
	r.byID[st.ID] = st
	r.notifyLocked()
	return nil
}

// Remove deletes a channel by id. The removed state is returned so the caller
// can cancel any in-flight probe ownership or recorder handle.
func (r *Registry) Remove(id string) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.byID, id)
	for i, cur := range r.list {
		if cur == st {
			r.list = append(r.list[:i], r.list[i+1:]...)
			break
		}
	}
	r.notifyLocked()
	return st, nil
}

// Clear removes every channel.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = nil
	r.byID = map[string]*State{}
	r.notifyLocked()
}

// All returns a snapshot of the current membership. The slice is a copy;
// the *State elements are shared (see State's concurrency contract).
func (r *Registry) All() []*State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*State, len(r.list))
	copy(out, r.list)
	return out
}

func (r *Registry) FindByID(id string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byID[id]
	return st, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list)
}

// Update applies a patch to the channel with the given id and fires the
// persistence hook when anything changed.
func (r *Registry) Update(id string, p Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Apply(st) {
		r.notifyLocked()
	}
	return nil
}

// RequestSave fires the persistence hook without a structural change.
// The dispatcher uses this once per cycle to cover in-place field mutations.
func (r *Registry) RequestSave() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Registry) notifyLocked() {
	if r.onChange != nil {
		r.onChange()
	}
}
