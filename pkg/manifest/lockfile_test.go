package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/errors"
)

const sampleLock = `version = 4

[[package]]
name = "app"
version = "0.1.0"
dependencies = ["libc"]

[[package]]
name = "libc"
version = "0.2.150"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "89d92a4743f9a61002fae18374ed11e7973f530cb3a3255fb354818118b2203c"
`

func writeLock(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLockfile(t *testing.T) {
	lock, err := LoadLockfile(writeLock(t, sampleLock))
	if err != nil {
		t.Fatalf("LoadLockfile() error = %v", err)
	}

	if len(lock.Packages) != 2 {
		t.Fatalf("Packages = %d, want 2", len(lock.Packages))
	}
	if got := lock.Packages[1].ID(); got != crate.ID("libc 0.2.150") {
		t.Errorf("ID() = %s, want libc 0.2.150", got)
	}

	sums := lock.Checksums()
	if len(sums) != 1 {
		t.Errorf("Checksums() = %v, want one entry", sums)
	}
	if _, ok := sums["app 0.1.0"]; ok {
		t.Error("Checksums() contains app, want checksum-less packages omitted")
	}
}

func TestLoadLockfile_Missing(t *testing.T) {
	_, err := LoadLockfile(filepath.Join(t.TempDir(), "nope.lock"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("LoadLockfile() error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestLoadLockfile_Invalid(t *testing.T) {
	_, err := LoadLockfile(writeLock(t, "version = [broken"))
	if !errors.Is(err, errors.ErrCodeInvalidManifest) {
		t.Errorf("LoadLockfile() error = %v, want INVALID_MANIFEST", err)
	}
}

func TestVerifyGraph(t *testing.T) {
	lock, err := LoadLockfile(writeLock(t, sampleLock))
	if err != nil {
		t.Fatalf("LoadLockfile() error = %v", err)
	}

	good := crate.Graph{
		"app 0.1.0":    {Name: "app"},
		"libc 0.2.150": {Name: "libc"},
	}
	if err := lock.VerifyGraph(good); err != nil {
		t.Errorf("VerifyGraph() error = %v, want nil", err)
	}

	bad := crate.Graph{"intruder 9.9.9": {Name: "intruder"}}
	if err := lock.VerifyGraph(bad); !errors.Is(err, errors.ErrCodeInvalidGraph) {
		t.Errorf("VerifyGraph() error = %v, want INVALID_GRAPH", err)
	}
}
