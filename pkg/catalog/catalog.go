// Package catalog tracks table generations per prefix: one writable
// generation and any number of sealed ones. It has no lock of its own; the
// storage engine's single owner serializes every call.
package catalog

import (
	"fmt"
	"sort"

	"github.com/downfa11-org/strata/pkg/types"
)

type entry struct {
	snapshot types.TableSnapshot
	flushed  bool
}

type prefixState struct {
	writable *entry
	sealed   []*entry
}

type Catalog struct {
	prefixes map[string]*prefixState
}

func New() *Catalog {
	return &Catalog{prefixes: make(map[string]*prefixState)}
}

// InsertResult reports what Insert did with the generation it displaced.
type InsertResult struct {
	// Replaced is set when a mutable writable generation was overwritten.
	Replaced *types.TableIdentifier
	// Sealed is set when an immutable writable generation moved to the sealed set.
	Sealed *types.TableIdentifier
}

// Insert installs snap as the writable generation of its prefix. A mutable
// predecessor is replaced (its data is expected to be merged into snap); an
// immutable one is sealed.
func (c *Catalog) Insert(snap types.TableSnapshot) InsertResult {
	prefix := snap.ID.Prefix
	st, ok := c.prefixes[prefix]
	if !ok {
		st = &prefixState{}
		c.prefixes[prefix] = st
	}

	var res InsertResult
	if old := st.writable; old != nil {
		id := old.snapshot.ID
		if old.snapshot.Mutable {
			res.Replaced = &id
		} else {
			st.sealed = append(st.sealed, old)
			res.Sealed = &id
		}
	}
	st.writable = &entry{snapshot: snap}
	return res
}

// Writable returns the writable generation for prefix.
func (c *Catalog) Writable(prefix string) (types.TableSnapshot, bool) {
	st, ok := c.prefixes[prefix]
	if !ok || st.writable == nil {
		return types.TableSnapshot{}, false
	}
	return st.writable.snapshot, true
}

// IsWritable reports whether id addresses the writable generation of its
// prefix and that generation still accepts merges. An identifier without a
// generation addresses whatever is writable for the prefix.
func (c *Catalog) IsWritable(id types.TableIdentifier) (bool, error) {
	st, ok := c.prefixes[id.Prefix]
	if !ok {
		return false, fmt.Errorf("table %q: %w", id.Prefix, types.ErrNotFound)
	}
	for _, e := range st.sealed {
		if e.snapshot.ID.Generation == id.Generation {
			return false, nil
		}
	}
	if st.writable == nil {
		return false, nil
	}
	if id.Generation != 0 && st.writable.snapshot.ID.Generation != id.Generation {
		return false, fmt.Errorf("table %q: %w", id.Name(), types.ErrNotFound)
	}
	return st.writable.snapshot.Mutable, nil
}

// SnapshotsForPrefix returns the sealed identifiers followed by the writable one.
func (c *Catalog) SnapshotsForPrefix(prefix string) []types.TableIdentifier {
	st, ok := c.prefixes[prefix]
	if !ok {
		return nil
	}

	ids := make([]types.TableIdentifier, 0, len(st.sealed)+1)
	for _, e := range st.sealed {
		ids = append(ids, e.snapshot.ID)
	}
	if st.writable != nil {
		ids = append(ids, st.writable.snapshot.ID)
	}
	return ids
}

// Snapshot looks up any tracked generation by identifier.
func (c *Catalog) Snapshot(id types.TableIdentifier) (types.TableSnapshot, bool) {
	e := c.find(id)
	if e == nil {
		return types.TableSnapshot{}, false
	}
	return e.snapshot, true
}

func (c *Catalog) find(id types.TableIdentifier) *entry {
	st, ok := c.prefixes[id.Prefix]
	if !ok {
		return nil
	}
	if st.writable != nil && st.writable.snapshot.ID.Generation == id.Generation {
		return st.writable
	}
	for _, e := range st.sealed {
		if e.snapshot.ID.Generation == id.Generation {
			return e
		}
	}
	return nil
}

// Identifiers lists every tracked generation, sorted by name.
func (c *Catalog) Identifiers() []types.TableIdentifier {
	var ids []types.TableIdentifier
	for prefix := range c.prefixes {
		ids = append(ids, c.SnapshotsForPrefix(prefix)...)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Prefix != ids[j].Prefix {
			return ids[i].Prefix < ids[j].Prefix
		}
		return ids[i].Generation < ids[j].Generation
	})
	return ids
}

// Prefixes lists the known prefixes, sorted.
func (c *Catalog) Prefixes() []string {
	out := make([]string, 0, len(c.prefixes))
	for p := range c.prefixes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MarkFlushed records that a generation has been persisted.
func (c *Catalog) MarkFlushed(id types.TableIdentifier) error {
	e := c.find(id)
	if e == nil {
		return fmt.Errorf("table %q: %w", id.Name(), types.ErrNotFound)
	}
	e.flushed = true
	return nil
}

func (c *Catalog) IsFlushed(id types.TableIdentifier) bool {
	e := c.find(id)
	return e != nil && e.flushed
}

// Evict drops a sealed generation. The writable generation cannot be evicted.
func (c *Catalog) Evict(id types.TableIdentifier) error {
	st, ok := c.prefixes[id.Prefix]
	if !ok {
		return fmt.Errorf("table %q: %w", id.Name(), types.ErrNotFound)
	}
	if st.writable != nil && st.writable.snapshot.ID.Generation == id.Generation {
		return fmt.Errorf("table %q is the writable generation", id.Name())
	}

	for i, e := range st.sealed {
		if e.snapshot.ID.Generation == id.Generation {
			st.sealed = append(st.sealed[:i], st.sealed[i+1:]...)
			if st.writable == nil && len(st.sealed) == 0 {
				delete(c.prefixes, id.Prefix)
			}
			return nil
		}
	}
	return fmt.Errorf("table %q: %w", id.Name(), types.ErrNotFound)
}

// Len is the number of tracked generations.
func (c *Catalog) Len() int {
	n := 0
	for _, st := range c.prefixes {
		n += len(st.sealed)
		if st.writable != nil {
			n++
		}
	}
	return n
}
