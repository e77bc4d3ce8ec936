package app

import (
	"context"
	"testing"
)

func TestCreatePageAppendsPositions(t *testing.T) {
	fake := newFakeStore()
	svc := newTestService(fake)
	ctx := context.Background()

	for want := 0; want < 3; want++ {
		page, err := svc.CreatePage(ctx, "org_1", "usr_1", CreatePageInput{Title: "Page"})
		if err != nil {
			t.Fatalf("CreatePage() error = %v", err)
		}
		if page.Position != want {
			t.Errorf("position = %d, want %d", page.Position, want)
		}
	}
}

func TestCreatePageSkipsTrashedSiblingsWhenAllocating(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_live", "org_1", nil, 0, "Live")
	addPage(fake, "pg_gone", "org_1", nil, 5, "Gone")
	trashPage(fake, "pg_gone")
	svc := newTestService(fake)

	page, err := svc.CreatePage(context.Background(), "org_1", "usr_1", CreatePageInput{Title: "New"})
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	if page.Position != 1 {
		t.Errorf("position = %d, want 1 (trashed sibling at 5 is not live)", page.Position)
	}
}

func TestCreatePageDefaultTitle(t *testing.T) {
	fake := newFakeStore()
	svc := newTestService(fake)

	page, err := svc.CreatePage(context.Background(), "org_1", "usr_1", CreatePageInput{Title: "   "})
	if err != nil {
		t.Fatalf("CreatePage() error = %v", err)
	}
	if page.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", page.Title)
	}
}

func TestCreatePageUnderTrashedParentRejected(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_parent", "org_1", nil, 0, "Parent")
	trashPage(fake, "pg_parent")
	svc := newTestService(fake)

	_, err := svc.CreatePage(context.Background(), "org_1", "usr_1", CreatePageInput{
		Title:    "Child",
		ParentID: strptr("pg_parent"),
	})
	assertDomainCode(t, err, "INVALID_PARENT")
}

func TestCreatePageCrossOrgParentRejected(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_foreign", "org_2", nil, 0, "Foreign")
	svc := newTestService(fake)

	_, err := svc.CreatePage(context.Background(), "org_1", "usr_1", CreatePageInput{
		ParentID: strptr("pg_foreign"),
	})
	assertDomainCode(t, err, "INVALID_PARENT")
}

func TestUpdatePageTrashedRejected(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_a", "org_1", nil, 0, "A")
	trashPage(fake, "pg_a")
	svc := newTestService(fake)

	title := "New title"
	_, err := svc.UpdatePage(context.Background(), "org_1", "pg_a", "usr_1", UpdatePageInput{Title: &title})
	assertDomainCode(t, err, "PAGE_IN_TRASH")
}

func TestUpdatePageSlugConflict(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_a", "org_1", nil, 0, "A")
	other := addPage(fake, "pg_b", "org_2", nil, 0, "B")
	other.PublicSlug = "handbook"
	fake.pages["pg_b"] = other
	svc := newTestService(fake)

	slug := "handbook"
	_, err := svc.UpdatePage(context.Background(), "org_1", "pg_a", "usr_1", UpdatePageInput{PublicSlug: &slug})
	assertDomainCode(t, err, "SLUG_ALREADY_EXISTS")
}

func TestUpdatePageKeepingOwnSlug(t *testing.T) {
	fake := newFakeStore()
	page := addPage(fake, "pg_a", "org_1", nil, 0, "A")
	page.PublicSlug = "handbook"
	fake.pages["pg_a"] = page
	svc := newTestService(fake)

	slug := "handbook"
	updated, err := svc.UpdatePage(context.Background(), "org_1", "pg_a", "usr_1", UpdatePageInput{PublicSlug: &slug})
	if err != nil {
		t.Fatalf("re-setting a page's own slug should not conflict: %v", err)
	}
	if updated.PublicSlug != "handbook" {
		t.Errorf("publicSlug = %q", updated.PublicSlug)
	}
}

func TestDuplicatePage(t *testing.T) {
	fake := newFakeStore()
	page := addPage(fake, "pg_a", "org_1", strptr("pg_parent"), 0, "Plan")
	page.Icon = "🗺️"
	page.PublicSlug = "plan"
	page.IsPublic = true
	fake.pages["pg_a"] = page
	addPage(fake, "pg_parent", "org_1", nil, 0, "Parent")
	addPage(fake, "pg_sib", "org_1", strptr("pg_parent"), 1, "Sibling")
	svc := newTestService(fake)

	copyPage, err := svc.DuplicatePage(context.Background(), "org_1", "pg_a", "usr_2")
	if err != nil {
		t.Fatalf("DuplicatePage() error = %v", err)
	}
	if copyPage.ID == "pg_a" {
		t.Error("duplicate must get a fresh id")
	}
	if copyPage.Title != "Plan (copy)" {
		t.Errorf("title = %q, want \"Plan (copy)\"", copyPage.Title)
	}
	if copyPage.ParentID == nil || *copyPage.ParentID != "pg_parent" {
		t.Errorf("parentId = %v, want pg_parent", copyPage.ParentID)
	}
	if copyPage.Position != 2 {
		t.Errorf("position = %d, want next in sibling group (2)", copyPage.Position)
	}
	if copyPage.Icon != "🗺️" {
		t.Errorf("icon = %q, should be copied", copyPage.Icon)
	}
	if copyPage.PublicSlug != "" || copyPage.IsPublic {
		t.Error("public slug must not be copied")
	}
	if copyPage.CreatedBy != "usr_2" {
		t.Errorf("createdBy = %q, want the duplicating actor", copyPage.CreatedBy)
	}
}

func TestDuplicateTrashedPageRejected(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_a", "org_1", nil, 0, "A")
	trashPage(fake, "pg_a")
	svc := newTestService(fake)

	_, err := svc.DuplicatePage(context.Background(), "org_1", "pg_a", "usr_1")
	assertDomainCode(t, err, "PAGE_IN_TRASH")
}

func TestGetPageCrossOrgHidden(t *testing.T) {
	fake := newFakeStore()
	addPage(fake, "pg_a", "org_2", nil, 0, "A")
	svc := newTestService(fake)

	_, err := svc.GetPage(context.Background(), "org_1", "pg_a")
	assertDomainCode(t, err, "PAGE_NOT_FOUND")
}

func TestPublicPageLookup(t *testing.T) {
	fake := newFakeStore()
	page := addPage(fake, "pg_a", "org_1", nil, 0, "A")
	page.IsPublic = true
	page.PublicSlug = "handbook"
	fake.pages["pg_a"] = page
	svc := newTestService(fake)

	found, err := svc.PublicPage(context.Background(), "handbook")
	if err != nil {
		t.Fatalf("PublicPage() error = %v", err)
	}
	if found.ID != "pg_a" {
		t.Errorf("id = %s", found.ID)
	}

	trashPage(fake, "pg_a")
	if _, err := svc.PublicPage(context.Background(), "handbook"); err == nil {
		t.Error("trashed page must not resolve through its share link")
	}
}
