package azdo

import (
	"html"
	"sort"
	"strings"

	"github.com/nhle/syncbridge/internal/model"
)

// RenderDescription builds the HTML body for a work item from the page
// description and its extra fields: the original description first,
// then a key/value table sorted by field name. All values are escaped;
// URL values are rendered as links.
func RenderDescription(description string, extra []model.ExtraField) string {
	var b strings.Builder

	if description != "" {
		b.WriteString("<div>")
		b.WriteString(escapeMultiline(description))
		b.WriteString("</div>")
	}

	if len(extra) > 0 {
		fields := make([]model.ExtraField, len(extra))
		copy(fields, extra)
		sort.Slice(fields, func(i, j int) bool {
			return fields[i].Name < fields[j].Name
		})

		if description != "" {
			b.WriteString("<br/>")
		}
		b.WriteString("<table>")
		for _, f := range fields {
			b.WriteString("<tr><td><b>")
			b.WriteString(html.EscapeString(f.Name))
			b.WriteString("</b></td><td>")
			b.WriteString(renderValue(f.Value))
			b.WriteString("</td></tr>")
		}
		b.WriteString("</table>")
	}

	return b.String()
}

// renderValue escapes a field value, turning bare URLs into links.
func renderValue(value string) string {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		escaped := html.EscapeString(value)
		return `<a href="` + escaped + `">` + escaped + `</a>`
	}
	return escapeMultiline(value)
}

// escapeMultiline escapes HTML and preserves line breaks.
func escapeMultiline(s string) string {
	escaped := html.EscapeString(s)
	return strings.ReplaceAll(escaped, "\n", "<br/>")
}
