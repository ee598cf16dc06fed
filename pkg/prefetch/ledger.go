// Package prefetch maintains the source-hash ledger for a build plan.
//
// The ledger is a JSON file mapping package IDs to source hashes. Plan
// generation loads the existing ledger, drops hashes for packages no longer in
// the plan, seeds new entries from lockfile checksums and reports which
// packages still need fetching. Actually fetching sources is out of scope;
// hash acquisition is the caller's concern.
package prefetch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/errors"
)

// Ledger maps package IDs to source hashes, backed by a JSON file.
// Ledger is not safe for concurrent use.
type Ledger struct {
	path   string
	hashes map[crate.ID]string
}

// Load reads the ledger at path. A missing file yields an empty ledger
// bound to that path, so the first Save creates it.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, hashes: make(map[crate.ID]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &l.hashes); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse hash ledger %s", path)
	}
	return l, nil
}

// Hash returns the recorded hash for id and whether one exists.
func (l *Ledger) Hash(id crate.ID) (string, bool) {
	h, ok := l.hashes[id]
	return h, ok
}

// Set records a hash for id, replacing any existing entry.
func (l *Ledger) Set(id crate.ID, hash string) {
	l.hashes[id] = hash
}

// Len returns the number of recorded hashes.
func (l *Ledger) Len() int { return len(l.hashes) }

// Merge seeds entries from known checksums without overwriting existing ones.
// Lockfile checksums win only for packages the ledger has never seen.
func (l *Ledger) Merge(sums map[crate.ID]string) {
	for id, sum := range sums {
		if _, ok := l.hashes[id]; !ok {
			l.hashes[id] = sum
		}
	}
}

// Prune drops hashes for packages not in used and returns how many were
// removed. Only hashes of packages in the current plan are carried forward.
func (l *Ledger) Prune(used []crate.ID) int {
	keep := make(map[crate.ID]bool, len(used))
	for _, id := range used {
		keep[id] = true
	}
	dropped := 0
	for id := range l.hashes {
		if !keep[id] {
			delete(l.hashes, id)
			dropped++
		}
	}
	return dropped
}

// Hasher computes the source hash for one package. Implementations decide how
// (lockfile checksum lookup, local archive digest, registry query).
type Hasher func(ctx context.Context, id crate.ID) (string, error)

// Fill computes hashes for every package in used that has no entry yet.
// The first hasher error aborts; entries recorded before it are kept.
func (l *Ledger) Fill(ctx context.Context, used []crate.ID, h Hasher) error {
	for _, id := range l.Missing(used) {
		hash, err := h(ctx, id)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "hash %s", id)
		}
		l.hashes[id] = hash
	}
	return nil
}

// Missing returns the packages from used that have no recorded hash,
// in sorted order.
func (l *Ledger) Missing(used []crate.ID) []crate.ID {
	var missing []crate.ID
	for _, id := range used {
		if _, ok := l.hashes[id]; !ok {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	return missing
}

// Save writes the ledger back to its file. Output is deterministic
// (encoding/json sorts map keys).
func (l *Ledger) Save() error {
	data, err := json.MarshalIndent(l.hashes, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(l.path, append(data, '\n'), 0644)
}
