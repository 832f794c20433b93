package tracking

import (
	"errors"
	"fmt"
	"time"

	"gamestore/internal/domain"

	"github.com/google/uuid"
)

// ErrOwnerNotAttachable is returned when a product child points at no product
var ErrOwnerNotAttachable = errors.New("owning product cannot be attached")

// State is the pending change of a tracked entity
type State int

const (
	Unchanged State = iota
	Added
	Modified
	Deleted
)

func (s State) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// Entry is one entity registered in a unit of work
type Entry struct {
	Entity domain.Entity
	State  State
	// Stub is set for products attached by id only. Persisting a stub writes
	// nothing but updated_at.
	Stub bool
}

// Tracker is the dirty set of one unit of work. It is not safe for
// concurrent use; every request builds its own.
type Tracker struct {
	now     func() time.Time
	entries []*Entry
	index   map[domain.Entity]*Entry
}

// New creates a tracker stamping with time.Now
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock creates a tracker stamping with the given clock
func NewWithClock(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:   now,
		index: make(map[domain.Entity]*Entry),
	}
}

// Add registers a new entity
func (t *Tracker) Add(e domain.Entity) *Entry {
	return t.set(e, Added)
}

// Update registers a changed entity. An entity added in the same unit of
// work stays added.
func (t *Tracker) Update(e domain.Entity) *Entry {
	if entry, ok := t.index[e]; ok && entry.State == Added {
		return entry
	}
	return t.set(e, Modified)
}

// Remove registers an entity for deletion. Removing an entity added in the
// same unit of work forgets it.
func (t *Tracker) Remove(e domain.Entity) *Entry {
	if entry, ok := t.index[e]; ok && entry.State == Added {
		t.forget(entry)
		return entry
	}
	return t.set(e, Deleted)
}

// Attach registers an entity as unchanged unless it is already tracked
func (t *Tracker) Attach(e domain.Entity) *Entry {
	if entry, ok := t.index[e]; ok {
		return entry
	}
	return t.set(e, Unchanged)
}

// Entry returns the tracking entry of e
func (t *Tracker) Entry(e domain.Entity) (*Entry, bool) {
	entry, ok := t.index[e]
	return entry, ok
}

// Entries returns every tracked entry in registration order
func (t *Tracker) Entries() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// HasChanges reports whether anything would be written
func (t *Tracker) HasChanges() bool {
	for _, entry := range t.entries {
		if entry.State != Unchanged {
			return true
		}
	}
	return false
}

// DetectChanges stamps every added or modified entity and cascades child
// changes up to the owning product. It must run right before the entries
// are persisted.
func (t *Tracker) DetectChanges() error {
	now := t.now().UTC()

	var owners []uuid.UUID
	seen := make(map[uuid.UUID]bool)

	for _, entry := range t.Entries() {
		stamps := entry.Entity.Stamps()
		switch entry.State {
		case Added:
			stamps.CreatedAt = now
			stamps.UpdatedAt = now
		case Modified:
			stamps.UpdatedAt = now
		default:
			continue
		}

		child, ok := entry.Entity.(domain.ProductOwned)
		if !ok {
			continue
		}
		id := child.OwnerProductID()
		if id == uuid.Nil {
			return fmt.Errorf("%w: %T has no product id", ErrOwnerNotAttachable, entry.Entity)
		}
		if !seen[id] {
			seen[id] = true
			owners = append(owners, id)
		}
	}

	for _, id := range owners {
		t.touchProduct(id, now)
	}
	return nil
}

// AcceptChanges marks everything unchanged after a successful save
func (t *Tracker) AcceptChanges() {
	kept := t.entries[:0]
	for _, entry := range t.entries {
		if entry.State == Deleted {
			delete(t.index, entry.Entity)
			continue
		}
		entry.State = Unchanged
		entry.Stub = false
		kept = append(kept, entry)
	}
	t.entries = kept
}

func (t *Tracker) touchProduct(id uuid.UUID, now time.Time) {
	entry := t.findProduct(id)
	if entry == nil {
		entry = t.Attach(&domain.Product{Base: domain.Base{ID: id}})
		entry.Stub = true
	}

	switch entry.State {
	case Added, Deleted:
		return
	case Unchanged:
		entry.State = Modified
	}
	entry.Entity.Stamps().UpdatedAt = now
}

func (t *Tracker) findProduct(id uuid.UUID) *Entry {
	for _, entry := range t.entries {
		if p, ok := entry.Entity.(*domain.Product); ok && p.ID == id {
			return entry
		}
	}
	return nil
}

func (t *Tracker) set(e domain.Entity, state State) *Entry {
	if entry, ok := t.index[e]; ok {
		entry.State = state
		return entry
	}
	entry := &Entry{Entity: e, State: state}
	t.entries = append(t.entries, entry)
	t.index[e] = entry
	return entry
}

func (t *Tracker) forget(entry *Entry) {
	delete(t.index, entry.Entity)
	for i, e := range t.entries {
		if e == entry {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}
