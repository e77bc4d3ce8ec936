package export

import (
	"context"
	"strings"
	"testing"
	"time"
)

func strptr(s string) *string { return &s }

type fakeExportStore struct {
	pages map[string]PageInfo
}

func (f *fakeExportStore) GetPage(_ context.Context, _, pageID string) (PageInfo, error) {
	return f.pages[pageID], nil
}

func (f *fakeExportStore) ListPages(context.Context, string) ([]PageInfo, error) {
	var out []PageInfo
	for _, p := range f.pages {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeExportStore) GetUserName(context.Context, string) (string, error) {
	return "Avery", nil
}

func testStore() *fakeExportStore {
	return &fakeExportStore{pages: map[string]PageInfo{
		"pg_root": {ID: "pg_root", Title: "Handbook", Icon: "📘", UpdatedBy: "usr_1", UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		"pg_mid":  {ID: "pg_mid", ParentID: strptr("pg_root"), Position: 0, Title: "Engineering"},
		"pg_b":    {ID: "pg_b", ParentID: strptr("pg_mid"), Position: 1, Title: "On-call"},
		"pg_a":    {ID: "pg_a", ParentID: strptr("pg_mid"), Position: 0, Title: "Deploys"},
	}}
}

func TestExportMarkdownOutline(t *testing.T) {
	svc := NewService(testStore())

	res, err := svc.Export(context.Background(), Request{
		OrganizationID: "org_1",
		PageID:         "pg_mid",
		Format:         FormatMarkdown,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Filename != "Engineering.md" {
		t.Errorf("filename = %q", res.Filename)
	}

	text := string(res.Data)
	if !strings.Contains(text, "# Engineering") {
		t.Errorf("missing title heading:\n%s", text)
	}
	if !strings.Contains(text, "Handbook") {
		t.Errorf("missing breadcrumb:\n%s", text)
	}
	deploys := strings.Index(text, "- Deploys")
	oncall := strings.Index(text, "- On-call")
	if deploys == -1 || oncall == -1 || deploys > oncall {
		t.Errorf("children missing or out of position order:\n%s", text)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := NewService(testStore())
	if _, err := svc.Export(context.Background(), Request{PageID: "pg_root", Format: "docx"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestRenderOutlineHTML(t *testing.T) {
	html, err := RenderOutlineHTML(TemplateData{
		Title:      "Quarterly Plan",
		Icon:       "🗓️",
		Breadcrumb: []string{"Handbook", "Engineering"},
		Author:     "Avery",
		UpdatedAt:  time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
		Children: []*OutlineNode{
			{Title: "Goals", Children: []*OutlineNode{{Title: "Latency"}}},
			{Title: "Staffing"},
		},
	})
	if err != nil {
		t.Fatalf("RenderOutlineHTML() error = %v", err)
	}
	for _, want := range []string{"Quarterly Plan", "Handbook / Engineering", "Feb 14, 2026", "Goals", "Latency", "Staffing"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderOutlineHTMLEscapes(t *testing.T) {
	html, err := RenderOutlineHTML(TemplateData{Title: `<script>alert("x")</script>`})
	if err != nil {
		t.Fatalf("RenderOutlineHTML() error = %v", err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("title was not escaped")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Quarterly Plan", "Quarterly-Plan"},
		{"weird/!@#name", "weirdname"},
		{"", "page"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
