package app

import (
	"sort"

	"lattice/api/internal/store"
)

// PageNode wraps a page with its resolved children for tree rendering.
type PageNode struct {
	store.Page
	Children []*PageNode
}

// BuildPageTree arranges a flat page set into a forest. A page whose parent
// is absent from the input (trashed, or filtered out by the caller) surfaces
// as a root: it is effectively detached in this view, not re-parented in
// storage. Sibling lists are sorted ascending by position at every level.
func BuildPageTree(pages []store.Page) []*PageNode {
	nodes := make(map[string]*PageNode, len(pages))
	for _, p := range pages {
		nodes[p.ID] = &PageNode{Page: p}
	}

	var roots []*PageNode
	for _, p := range pages {
		node := nodes[p.ID]
		if p.ParentID != nil {
			if parent, ok := nodes[*p.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortSiblings(roots)
	return roots
}

func sortSiblings(nodes []*PageNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Position < nodes[j].Position
	})
	for _, node := range nodes {
		sortSiblings(node.Children)
	}
}
