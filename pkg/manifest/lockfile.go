package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/errors"
)

// Lockfile is a parsed Cargo.lock: the fixed set of package identities a
// graph must stay within.
type Lockfile struct {
	Version  int           `toml:"version"`
	Packages []LockPackage `toml:"package"`
}

// LockPackage is one [[package]] entry in a Cargo.lock.
type LockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

// ID returns the package's graph identity, "name version".
// This is the ID convention the graph loader and the hash ledger share.
func (p LockPackage) ID() crate.ID {
	return LockID(p.Name, p.Version)
}

// LockID builds a package ID from a name and version.
func LockID(name, version string) crate.ID {
	return crate.ID(fmt.Sprintf("%s %s", name, version))
}

// LoadLockfile reads and parses a Cargo.lock file.
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "lockfile %s", path)
		}
		return nil, err
	}

	var lock Lockfile
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	return &lock, nil
}

// IDs returns the identity set of all locked packages.
func (l *Lockfile) IDs() map[crate.ID]bool {
	ids := make(map[crate.ID]bool, len(l.Packages))
	for _, p := range l.Packages {
		ids[p.ID()] = true
	}
	return ids
}

// Checksums returns the source checksum per package ID, for packages that
// carry one (path and git dependencies do not).
func (l *Lockfile) Checksums() map[crate.ID]string {
	sums := make(map[crate.ID]string)
	for _, p := range l.Packages {
		if p.Checksum != "" {
			sums[p.ID()] = p.Checksum
		}
	}
	return sums
}

// VerifyGraph checks that every package in the graph is pinned by the
// lockfile. A graph package outside the lockfile means the two inputs were
// generated from different states of the project.
func (l *Lockfile) VerifyGraph(g crate.Graph) error {
	locked := l.IDs()
	for _, id := range g.IDs() {
		if !locked[id] {
			return errors.New(errors.ErrCodeInvalidGraph,
				"package %s is not pinned by the lockfile", id)
		}
	}
	return nil
}
