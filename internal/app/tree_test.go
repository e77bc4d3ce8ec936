package app

import (
	"context"
	"errors"
	"testing"

	"lattice/api/internal/store"
)

func TestBuildPageTreeSortsSiblingsByPosition(t *testing.T) {
	pages := []store.Page{
		{ID: "pg_b", Position: 1},
		{ID: "pg_a", Position: 0},
		{ID: "pg_b1", ParentID: strptr("pg_b"), Position: 1},
		{ID: "pg_b0", ParentID: strptr("pg_b"), Position: 0},
	}

	roots := BuildPageTree(pages)

	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	if roots[0].ID != "pg_a" || roots[1].ID != "pg_b" {
		t.Errorf("root order = %s, %s", roots[0].ID, roots[1].ID)
	}
	children := roots[1].Children
	if len(children) != 2 || children[0].ID != "pg_b0" || children[1].ID != "pg_b1" {
		t.Errorf("unexpected child order: %+v", children)
	}
}

func TestBuildPageTreeDetachedParentSurfacesAsRoot(t *testing.T) {
	// pg_orphan's parent is not in the input set (e.g. trashed). The page
	// shows up as a root in this view without being re-parented in storage.
	pages := []store.Page{
		{ID: "pg_root", Position: 0},
		{ID: "pg_orphan", ParentID: strptr("pg_gone"), Position: 0},
	}

	roots := BuildPageTree(pages)

	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	found := false
	for _, root := range roots {
		if root.ID == "pg_orphan" {
			found = true
			if root.ParentID == nil || *root.ParentID != "pg_gone" {
				t.Error("detached page should keep its stored parentId")
			}
		}
	}
	if !found {
		t.Error("detached page missing from roots")
	}
}

func TestBuildPageTreeEmptyInput(t *testing.T) {
	if roots := BuildPageTree(nil); len(roots) != 0 {
		t.Errorf("expected empty forest, got %d roots", len(roots))
	}
}

func TestAncestorsOfRootIsEmpty(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_root", "org_1", nil, 0, "Root")
	svc := newTestService(fake)

	chain, err := svc.Ancestors(context.Background(), "org_1", "pg_root")
	if err != nil {
		t.Fatalf("Ancestors() error = %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("root page should have no ancestors, got %d", len(chain))
	}
}

func TestAncestorsDepthThreeChain(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_root", "org_1", nil, 0, "Root")
	addPage(fake, "pg_mid", "org_1", strptr("pg_root"), 0, "Mid")
	addPage(fake, "pg_leaf", "org_1", strptr("pg_mid"), 0, "Leaf")
	svc := newTestService(fake)

	chain, err := svc.Ancestors(context.Background(), "org_1", "pg_leaf")
	if err != nil {
		t.Fatalf("Ancestors() error = %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("ancestors = %d, want 2", len(chain))
	}
	if chain[0].ID != "pg_root" || chain[1].ID != "pg_mid" {
		t.Errorf("chain order = %s, %s; want root first", chain[0].ID, chain[1].ID)
	}
}

func TestAncestorsStopsAtBrokenLink(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_leaf", "org_1", strptr("pg_missing"), 0, "Leaf")
	svc := newTestService(fake)

	chain, err := svc.Ancestors(context.Background(), "org_1", "pg_leaf")
	if err != nil {
		t.Fatalf("broken parent link should not fail the walk: %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("expected empty chain past a broken link, got %d", len(chain))
	}
}

func TestAncestorsStopsAtTrashedParent(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_root", "org_1", nil, 0, "Root")
	addPage(fake, "pg_mid", "org_1", strptr("pg_root"), 0, "Mid")
	addPage(fake, "pg_leaf", "org_1", strptr("pg_mid"), 0, "Leaf")
	trashPage(fake, "pg_mid")
	svc := newTestService(fake)

	chain, err := svc.Ancestors(context.Background(), "org_1", "pg_leaf")
	if err != nil {
		t.Fatalf("Ancestors() error = %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("walk should stop silently at a trashed parent, got %d ancestors", len(chain))
	}
}

func TestAncestorsUnknownPage(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Ancestors(context.Background(), "org_1", "pg_nope")
	assertDomainCode(t, err, "PAGE_NOT_FOUND")
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *DomainError
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError %s, got %v", code, err)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s", domainErr.Code, code)
	}
}
