package prefetch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/crateplan/crateplan/pkg/crate"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "crate-hashes.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crate-hashes.json")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	l.Set("libc 0.2.150", "sha256-aaa")
	l.Set("serde 1.0.190", "sha256-bbb")
	if err := l.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after save error = %v", err)
	}
	if h, ok := again.Hash("libc 0.2.150"); !ok || h != "sha256-aaa" {
		t.Errorf("Hash(libc) = %q, %v, want sha256-aaa, true", h, ok)
	}
	if again.Len() != 2 {
		t.Errorf("Len() = %d, want 2", again.Len())
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate-hashes.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestPrune_KeepsOnlyUsed(t *testing.T) {
	l := &Ledger{hashes: map[crate.ID]string{
		"libc 0.2.150":  "sha256-aaa",
		"serde 1.0.190": "sha256-bbb",
		"stale 0.0.1":   "sha256-old",
	}}

	dropped := l.Prune([]crate.ID{"libc 0.2.150", "serde 1.0.190"})

	if dropped != 1 {
		t.Errorf("Prune() = %d, want 1", dropped)
	}
	if _, ok := l.Hash("stale 0.0.1"); ok {
		t.Error("Hash(stale) present, want pruned")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestMerge_DoesNotOverwrite(t *testing.T) {
	l := &Ledger{hashes: map[crate.ID]string{"libc 0.2.150": "sha256-mine"}}

	l.Merge(map[crate.ID]string{
		"libc 0.2.150":  "sha256-lock",
		"serde 1.0.190": "sha256-new",
	})

	if h, _ := l.Hash("libc 0.2.150"); h != "sha256-mine" {
		t.Errorf("Hash(libc) = %q, want existing entry kept", h)
	}
	if h, _ := l.Hash("serde 1.0.190"); h != "sha256-new" {
		t.Errorf("Hash(serde) = %q, want sha256-new", h)
	}
}

func TestFill_OnlyMissing(t *testing.T) {
	l := &Ledger{hashes: map[crate.ID]string{"libc 0.2.150": "sha256-aaa"}}

	var asked []crate.ID
	err := l.Fill(context.Background(), []crate.ID{"libc 0.2.150", "serde 1.0.190"},
		func(ctx context.Context, id crate.ID) (string, error) {
			asked = append(asked, id)
			return "sha256-" + string(id), nil
		})
	if err != nil {
		t.Fatalf("Fill() error = %v", err)
	}

	if !reflect.DeepEqual(asked, []crate.ID{"serde 1.0.190"}) {
		t.Errorf("hasher asked for %v, want only the missing package", asked)
	}
	if h, _ := l.Hash("libc 0.2.150"); h != "sha256-aaa" {
		t.Errorf("Hash(libc) = %q, want existing entry kept", h)
	}
	if h, _ := l.Hash("serde 1.0.190"); h != "sha256-serde 1.0.190" {
		t.Errorf("Hash(serde) = %q, want filled", h)
	}
}

func TestFill_ErrorAborts(t *testing.T) {
	l := &Ledger{hashes: map[crate.ID]string{}}

	err := l.Fill(context.Background(), []crate.ID{"libc 0.2.150"},
		func(ctx context.Context, id crate.ID) (string, error) {
			return "", os.ErrDeadlineExceeded
		})
	if err == nil {
		t.Error("Fill() error = nil, want hasher failure")
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed fill", l.Len())
	}
}

func TestMissing(t *testing.T) {
	l := &Ledger{hashes: map[crate.ID]string{"libc 0.2.150": "sha256-aaa"}}

	got := l.Missing([]crate.ID{"serde 1.0.190", "libc 0.2.150", "app 0.1.0"})

	want := []crate.ID{"app 0.1.0", "serde 1.0.190"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}
}
