package export

import (
	"context"
	"fmt"
	"sort"
)

// DataStore is the storage surface the exporter reads from. ListPages must
// return only live pages for the organization.
type DataStore interface {
	GetPage(ctx context.Context, orgID, pageID string) (PageInfo, error)
	ListPages(ctx context.Context, orgID string) ([]PageInfo, error)
	GetUserName(ctx context.Context, userID string) (string, error)
}

// Service renders page outlines for download.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an outline of the page and its live descendants in the
// requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	root, err := s.store.GetPage(ctx, req.OrganizationID, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}

	pages, err := s.store.ListPages(ctx, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	author := ""
	if root.UpdatedBy != "" {
		if name, err := s.store.GetUserName(ctx, root.UpdatedBy); err == nil {
			author = name
		}
	}

	data := TemplateData{
		Title:      root.Title,
		Icon:       root.Icon,
		Breadcrumb: breadcrumb(root, pages),
		Author:     author,
		UpdatedAt:  root.UpdatedAt,
		Children:   subtree(root.ID, pages),
	}

	switch req.Format {
	case FormatMarkdown:
		return &Result{
			Data:     renderMarkdown(data),
			Filename: sanitizeFilename(root.Title) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	case FormatPDF:
		html, err := RenderOutlineHTML(data)
		if err != nil {
			return nil, fmt.Errorf("render outline: %w", err)
		}
		return exportPDF(html, root.Title)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
}

// breadcrumb walks parent links from the page up to the root, returning
// titles ordered root first. The walk stops at a missing parent.
func breadcrumb(p PageInfo, pages []PageInfo) []string {
	byID := make(map[string]PageInfo, len(pages))
	for _, page := range pages {
		byID[page.ID] = page
	}

	var titles []string
	current := p
	for i := 0; i < 1024; i++ {
		if current.ParentID == nil {
			break
		}
		parent, ok := byID[*current.ParentID]
		if !ok {
			break
		}
		titles = append(titles, parent.Title)
		current = parent
	}

	for i, j := 0, len(titles)-1; i < j; i, j = i+1, j-1 {
		titles[i], titles[j] = titles[j], titles[i]
	}
	return titles
}

// subtree builds the outline below rootID, siblings ordered by position.
func subtree(rootID string, pages []PageInfo) []*OutlineNode {
	children := make(map[string][]PageInfo)
	for _, p := range pages {
		if p.ParentID != nil {
			children[*p.ParentID] = append(children[*p.ParentID], p)
		}
	}

	var build func(id string) []*OutlineNode
	build = func(id string) []*OutlineNode {
		kids := children[id]
		sort.Slice(kids, func(i, j int) bool { return kids[i].Position < kids[j].Position })
		var nodes []*OutlineNode
		for _, kid := range kids {
			nodes = append(nodes, &OutlineNode{
				Title:    kid.Title,
				Icon:     kid.Icon,
				Children: build(kid.ID),
			})
		}
		return nodes
	}
	return build(rootID)
}
