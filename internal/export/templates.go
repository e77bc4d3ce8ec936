package export

import (
	"bytes"
	"html/template"
	"time"
)

// OutlineNode is one page in the rendered subtree.
type OutlineNode struct {
	Title    string
	Icon     string
	Children []*OutlineNode
}

// TemplateData holds data for outline template rendering.
type TemplateData struct {
	Title      string
	Icon       string
	Breadcrumb []string
	Author     string
	UpdatedAt  time.Time
	Children   []*OutlineNode
}

var outlineTemplate = template.Must(template.New("outline").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"join": joinBreadcrumb,
}).Parse(outlineTemplateText))

// RenderOutlineHTML renders the outline template with provided data.
func RenderOutlineHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := outlineTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func joinBreadcrumb(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " / "
		}
		out += p
	}
	return out
}

const outlineTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #222; max-width: 760px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #5b4dd1; padding-bottom: 0.4rem; }
    .breadcrumb { color: #888; font-size: 0.85em; margin-bottom: 0.25rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    ul.outline { list-style: none; padding-left: 1.25rem; }
    ul.outline li { margin: 0.3rem 0; }
    .icon { margin-right: 0.35rem; }
    @page { margin: 2cm; }
  </style>
</head>
<body>
  {{if .Breadcrumb}}<div class="breadcrumb">{{join .Breadcrumb}}</div>{{end}}
  <h1>{{if .Icon}}<span class="icon">{{.Icon}}</span>{{end}}{{.Title}}</h1>
  <div class="meta">Last updated {{formatDate .UpdatedAt "Jan 2, 2006"}}{{if .Author}} by {{.Author}}{{end}}</div>
  {{if .Children}}
  {{template "children" .Children}}
  {{end}}
</body>
</html>
{{define "children"}}<ul class="outline">
{{range .}}<li>{{if .Icon}}<span class="icon">{{.Icon}}</span>{{end}}{{.Title}}{{if .Children}}{{template "children" .Children}}{{end}}</li>
{{end}}</ul>{{end}}`
