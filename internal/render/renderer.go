package render

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"path/filepath"
	"strings"

	"moa-report-jira/internal/models"
)

// Renderer turns a report context into HTML: templated pages for the web UI
// and a storage-format string for Confluence drafts.
type Renderer struct {
	templates *template.Template
}

// New loads the page templates from the given directory.
func New(pagesDir string) (*Renderer, error) {
	templates, err := template.ParseGlob(filepath.Join(pagesDir, "*.html"))
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: templates}, nil
}

// Page executes one named page template.
func (r *Renderer) Page(w io.Writer, name string, data interface{}) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// WikiHTML builds the Confluence storage-format body for a report.
// Confluence accepts a restricted HTML subset, so this is a plain string
// builder rather than a template.
func WikiHTML(ctx *models.ReportContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<h1>%d년 업무 리포트</h1>", ctx.Year)
	fmt.Fprintf(&b, "<p>총 %d건의 이슈를 처리했습니다.</p>", ctx.TotalCount)

	b.WriteString("<h2>월별 현황</h2><table><tbody>")
	b.WriteString("<tr><th>월</th><th>건수</th></tr>")
	for _, slot := range ctx.Months {
		fmt.Fprintf(&b, "<tr><td>%d월</td><td>%d</td></tr>", slot.Month, slot.Count)
	}
	b.WriteString("</tbody></table>")

	if len(ctx.TypeCounts) > 0 {
		b.WriteString("<h2>유형별 현황</h2><ul>")
		for _, tc := range ctx.TypeCounts {
			fmt.Fprintf(&b, "<li>%s: %d</li>", html.EscapeString(tc.Type), tc.Count)
		}
		b.WriteString("</ul>")
	}

	if len(ctx.LabelCounts) > 0 {
		b.WriteString("<h2>주요 라벨</h2><ul>")
		for _, lc := range ctx.LabelCounts {
			fmt.Fprintf(&b, "<li>%s: %d</li>", html.EscapeString(lc.Label), lc.Count)
		}
		b.WriteString("</ul>")
	}

	b.WriteString("<h2>버전별 상세</h2>")
	for _, project := range ctx.VersionProjects {
		fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(project.Name))
		for _, group := range project.Groups {
			fmt.Fprintf(&b, "<h4>%s (%d건)</h4><ul>", html.EscapeString(group.Title), group.Count)
			for _, root := range group.Roots {
				writeWikiNode(&b, root)
			}
			b.WriteString("</ul>")
		}
	}

	return b.String()
}

func writeWikiNode(b *strings.Builder, node models.IssueNode) {
	issue := node.Issue
	fmt.Fprintf(b, `<li><a href="%s">%s</a> %s`,
		html.EscapeString(issue.Link),
		html.EscapeString(issue.Key),
		html.EscapeString(issue.Summary))

	if len(node.Children) > 0 {
		b.WriteString("<ul>")
		for _, child := range node.Children {
			writeWikiNode(b, child)
		}
		b.WriteString("</ul>")
	}

	b.WriteString("</li>")
}
