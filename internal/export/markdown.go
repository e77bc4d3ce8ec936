package export

import (
	"fmt"
	"strings"
)

// renderMarkdown writes the outline as a Markdown document: breadcrumb,
// title heading, then the subtree as a nested bullet list.
func renderMarkdown(data TemplateData) []byte {
	var b strings.Builder

	if len(data.Breadcrumb) > 0 {
		b.WriteString(joinBreadcrumb(data.Breadcrumb))
		b.WriteString("\n\n")
	}

	if data.Icon != "" {
		fmt.Fprintf(&b, "# %s %s\n\n", data.Icon, data.Title)
	} else {
		fmt.Fprintf(&b, "# %s\n\n", data.Title)
	}

	fmt.Fprintf(&b, "Last updated %s", data.UpdatedAt.Format("Jan 2, 2006"))
	if data.Author != "" {
		fmt.Fprintf(&b, " by %s", data.Author)
	}
	b.WriteString("\n")

	if len(data.Children) > 0 {
		b.WriteString("\n")
		writeMarkdownList(&b, data.Children, 0)
	}
	return []byte(b.String())
}

func writeMarkdownList(b *strings.Builder, nodes []*OutlineNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		if n.Icon != "" {
			fmt.Fprintf(b, "%s- %s %s\n", indent, n.Icon, n.Title)
		} else {
			fmt.Fprintf(b, "%s- %s\n", indent, n.Title)
		}
		writeMarkdownList(b, n.Children, depth+1)
	}
}
