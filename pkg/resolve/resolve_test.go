package resolve

import (
	"reflect"
	"testing"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/errors"
)

// leaf creates a crate with an empty default feature and no dependencies.
func leaf(name string) *crate.Crate {
	return &crate.Crate{
		Name:     name,
		Features: map[string][]string{"default": {}},
	}
}

// testGraph builds the root/pkg_id1/pkg_id2/pkg_id3 fixture: one non-optional
// dependency with defaults, one optional dependency declared before a second
// non-optional dependency that opts out of defaults.
func testGraph() crate.Graph {
	return crate.Graph{
		"root": {
			Name:     "root",
			Features: map[string][]string{"default": {}},
			Dependencies: []crate.Dependency{
				{Name: "id1", Package: "pkg_id1", DefaultFeatures: true},
				{Name: "optional_id2", Package: "pkg_id2", Optional: true, DefaultFeatures: true},
				{Name: "id3", Package: "pkg_id3", DefaultFeatures: false},
			},
		},
		"pkg_id1": leaf("one"),
		"pkg_id2": leaf("two"),
		"pkg_id3": leaf("three"),
	}
}

func TestResolve_TerminalLeaf(t *testing.T) {
	g := crate.Graph{"pkg_id1": leaf("one")}

	list, merged, err := Resolve(g, "pkg_id1", nil, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantList := ActivationList{{Package: "pkg_id1", Features: []string{}}}
	if !reflect.DeepEqual(list, wantList) {
		t.Errorf("list = %v, want %v", list, wantList)
	}
	wantMerged := MergedMap{"pkg_id1": {}}
	if !reflect.DeepEqual(merged, wantMerged) {
		t.Errorf("merged = %v, want %v", merged, wantMerged)
	}
}

func TestResolve_RootWithDefault(t *testing.T) {
	g := crate.Graph{"pkg_id1": leaf("one")}

	list, merged, err := Resolve(g, "pkg_id1", []string{"default"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantList := ActivationList{{Package: "pkg_id1", Features: []string{"default"}}}
	if !reflect.DeepEqual(list, wantList) {
		t.Errorf("list = %v, want %v", list, wantList)
	}
	wantMerged := MergedMap{"pkg_id1": {"default"}}
	if !reflect.DeepEqual(merged, wantMerged) {
		t.Errorf("merged = %v, want %v", merged, wantMerged)
	}
}

func TestResolve_SkipsInactiveOptional(t *testing.T) {
	list, merged, err := Resolve(testGraph(), "root", []string{"default"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantList := ActivationList{
		{Package: "root", Features: []string{"default"}},
		{Package: "pkg_id1", Features: []string{"default"}},
		{Package: "pkg_id3", Features: []string{}},
	}
	if !reflect.DeepEqual(list, wantList) {
		t.Errorf("list = %v, want %v", list, wantList)
	}
	if _, ok := merged["pkg_id2"]; ok {
		t.Error("merged contains pkg_id2, want absent")
	}
}

func TestResolve_OptionalWalkedAfterNonOptional(t *testing.T) {
	list, merged, err := Resolve(testGraph(), "root", []string{"default", "optional_id2"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// optional_id2 is declared before id3 but walked after it: within a
	// group, non-optional dependencies always come first.
	wantList := ActivationList{
		{Package: "root", Features: []string{"default", "optional_id2"}},
		{Package: "pkg_id1", Features: []string{"default"}},
		{Package: "pkg_id3", Features: []string{}},
		{Package: "pkg_id2", Features: []string{"default"}},
	}
	if !reflect.DeepEqual(list, wantList) {
		t.Errorf("list = %v, want %v", list, wantList)
	}
	if got := merged["pkg_id2"]; !reflect.DeepEqual(got, []string{"default"}) {
		t.Errorf("merged[pkg_id2] = %v, want [default]", got)
	}
}

func TestResolve_SameTargetTwoKinds(t *testing.T) {
	g := crate.Graph{
		"root": {
			Name: "root",
			Dependencies: []crate.Dependency{
				{Name: "id1", Package: "pkg_id1", DefaultFeatures: true},
			},
			BuildDependencies: []crate.Dependency{
				{Name: "id1", Package: "pkg_id1", DefaultFeatures: true, Features: []string{"for_build"}},
			},
		},
		"pkg_id1": leaf("one"),
	}

	list, merged, err := Resolve(g, "root", nil, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantList := ActivationList{
		{Package: "root", Features: []string{}},
		{Package: "pkg_id1", Features: []string{"default"}},
		{Package: "pkg_id1", Features: []string{"default", "for_build"}},
	}
	if !reflect.DeepEqual(list, wantList) {
		t.Errorf("list = %v, want %v", list, wantList)
	}
	if got := merged["pkg_id1"]; !reflect.DeepEqual(got, []string{"default", "for_build"}) {
		t.Errorf("merged[pkg_id1] = %v, want [default for_build]", got)
	}
}

func TestResolve_FeatureActivatesOptional(t *testing.T) {
	g := crate.Graph{
		"root": {
			Name: "root",
			Features: map[string][]string{
				"default": {},
				"net":     {"socket2"},
			},
			Dependencies: []crate.Dependency{
				{Name: "socket2", Package: "pkg_socket2", Optional: true, DefaultFeatures: true},
			},
		},
		"pkg_socket2": leaf("socket2"),
	}

	list, _, err := Resolve(g, "root", []string{"default", "net"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(list) != 2 || list[1].Package != "pkg_socket2" {
		t.Errorf("list = %v, want root followed by pkg_socket2", list)
	}
}

func TestResolve_TransitiveRefThreadsFeatures(t *testing.T) {
	g := crate.Graph{
		"root": {
			Name: "root",
			Features: map[string][]string{
				"default": {"serde/derive"},
			},
			Dependencies: []crate.Dependency{
				{Name: "serde", Package: "pkg_serde", Optional: true, DefaultFeatures: true},
			},
		},
		"pkg_serde": {
			Name:     "serde",
			Features: map[string][]string{"default": {}, "derive": {}},
		},
	}

	list, merged, err := Resolve(g, "root", []string{"default"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	wantList := ActivationList{
		{Package: "root", Features: []string{"default"}},
		{Package: "pkg_serde", Features: []string{"default", "derive"}},
	}
	if !reflect.DeepEqual(list, wantList) {
		t.Errorf("list = %v, want %v", list, wantList)
	}
	if got := merged["pkg_serde"]; !reflect.DeepEqual(got, []string{"default", "derive"}) {
		t.Errorf("merged[pkg_serde] = %v, want [default derive]", got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	g := testGraph()

	first, firstMerged, err := Resolve(g, "root", []string{"default", "optional_id2"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for range 10 {
		list, merged, err := Resolve(g, "root", []string{"default", "optional_id2"}, Options{})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !reflect.DeepEqual(list, first) {
			t.Fatalf("list = %v, want %v", list, first)
		}
		if !reflect.DeepEqual(merged, firstMerged) {
			t.Fatalf("merged = %v, want %v", merged, firstMerged)
		}
	}
}

func TestResolve_MergedMapComplete(t *testing.T) {
	list, merged, err := Resolve(testGraph(), "root", []string{"default", "optional_id2"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// Every package in the activation list has a merged entry equal to the
	// order-preserving deduplicated union of its per-site feature sets.
	unions := make(map[crate.ID][]string)
	for _, rec := range list {
		u := unions[rec.Package]
		if u == nil {
			u = []string{}
		}
		for _, f := range rec.Features {
			if !contains(u, f) {
				u = append(u, f)
			}
		}
		unions[rec.Package] = u
	}
	if !reflect.DeepEqual(merged, MergedMap(unions)) {
		t.Errorf("merged = %v, want %v", merged, unions)
	}
}

func TestResolve_DanglingReference(t *testing.T) {
	g := crate.Graph{
		"root": {
			Name: "root",
			Dependencies: []crate.Dependency{
				{Name: "ghost", Package: "pkg_ghost", DefaultFeatures: true},
			},
		},
	}

	_, _, err := Resolve(g, "root", nil, Options{})
	if !errors.Is(err, errors.ErrCodeDanglingReference) {
		t.Errorf("Resolve() error = %v, want DANGLING_REFERENCE", err)
	}
}

func TestResolve_UnknownRoot(t *testing.T) {
	_, _, err := Resolve(crate.Graph{}, "nowhere", nil, Options{})
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("Resolve() error = %v, want PACKAGE_NOT_FOUND", err)
	}
}

func TestResolve_DepthLimit(t *testing.T) {
	// A self-dependency recurses forever without the depth guard.
	g := crate.Graph{
		"looper": {
			Name: "looper",
			Dependencies: []crate.Dependency{
				{Name: "looper", Package: "looper", DefaultFeatures: true},
			},
		},
	}

	_, _, err := Resolve(g, "looper", nil, Options{MaxDepth: 8})
	if !errors.Is(err, errors.ErrCodeDepthExceeded) {
		t.Errorf("Resolve() error = %v, want DEPTH_EXCEEDED", err)
	}
}

func TestResolve_KindOrderConfigurable(t *testing.T) {
	g := crate.Graph{
		"root": {
			Name: "root",
			Dependencies: []crate.Dependency{
				{Name: "n", Package: "pkg_n", DefaultFeatures: true},
			},
			DevDependencies: []crate.Dependency{
				{Name: "d", Package: "pkg_d", DefaultFeatures: true},
			},
		},
		"pkg_n": leaf("n"),
		"pkg_d": leaf("d"),
	}

	// Default kinds skip dev-dependencies entirely.
	list, _, err := Resolve(g, "root", nil, Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for _, rec := range list {
		if rec.Package == "pkg_d" {
			t.Errorf("list = %v, want pkg_d absent with default kinds", list)
		}
	}

	// Opting dev in processes the group after normal dependencies.
	list, _, err = Resolve(g, "root", nil, Options{
		Kinds: []crate.Kind{crate.KindNormal, crate.KindBuild, crate.KindDev},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	wantOrder := []crate.ID{"root", "pkg_n", "pkg_d"}
	for i, rec := range list {
		if rec.Package != wantOrder[i] {
			t.Errorf("list[%d] = %s, want %s", i, rec.Package, wantOrder[i])
		}
	}
}
