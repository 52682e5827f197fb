package notion

import (
	"fmt"
	"strconv"
	"strings"
)

// displayString renders a property value to a display string. The
// second return is false when the property kind is not extractable or
// the value is empty. Unknown kinds never panic; they simply produce
// no value.
func displayString(p Property) (string, bool) {
	switch p.Type {
	case "title":
		return nonEmpty(plainText(p.Title))
	case "rich_text":
		return nonEmpty(plainText(p.RichText))
	case "select":
		if p.Select == nil {
			return "", false
		}
		return nonEmpty(p.Select.Name)
	case "status":
		if p.Status == nil {
			return "", false
		}
		return nonEmpty(p.Status.Name)
	case "multi_select":
		if len(p.MultiSelect) == 0 {
			return "", false
		}
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, opt.Name)
		}
		return strings.Join(names, ", "), true
	case "number":
		if p.Number == nil {
			return "", false
		}
		return formatNumber(*p.Number), true
	case "checkbox":
		if p.Checkbox == nil {
			return "", false
		}
		return strconv.FormatBool(*p.Checkbox), true
	case "url":
		if p.URL == nil {
			return "", false
		}
		return nonEmpty(*p.URL)
	case "email":
		if p.Email == nil {
			return "", false
		}
		return nonEmpty(*p.Email)
	case "phone_number":
		if p.PhoneNumber == nil {
			return "", false
		}
		return nonEmpty(*p.PhoneNumber)
	case "people":
		if len(p.People) == 0 {
			return "", false
		}
		names := make([]string, 0, len(p.People))
		for _, u := range p.People {
			names = append(names, userLabel(u))
		}
		return strings.Join(names, ", "), true
	case "date":
		return dateString(p.Date)
	case "formula":
		return formulaString(p.Formula)
	case "rollup":
		return rollupString(p.Rollup)
	case "relation":
		if len(p.Relation) == 0 {
			return "", false
		}
		return fmt.Sprintf("%d linked", len(p.Relation)), true
	case "created_time":
		return nonEmpty(p.CreatedTime)
	case "last_edited_time":
		return nonEmpty(p.LastEditedTime)
	}
	return "", false
}

// plainText concatenates the plain text of all rich text spans.
func plainText(spans []RichText) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.PlainText)
	}
	return strings.TrimSpace(b.String())
}

// userLabel prefers the user's email, falling back to display name.
func userLabel(u User) string {
	if u.Person != nil && u.Person.Email != "" {
		return u.Person.Email
	}
	return u.Name
}

// dateString renders a date range as "start" or "start - end".
func dateString(d *DateRange) (string, bool) {
	if d == nil || d.Start == "" {
		return "", false
	}
	if d.End != "" {
		return d.Start + " - " + d.End, true
	}
	return d.Start, true
}

// formulaString renders a computed formula result per its result type.
func formulaString(f *Formula) (string, bool) {
	if f == nil {
		return "", false
	}
	switch f.Type {
	case "string":
		if f.String == nil {
			return "", false
		}
		return nonEmpty(*f.String)
	case "number":
		if f.Number == nil {
			return "", false
		}
		return formatNumber(*f.Number), true
	case "boolean":
		if f.Boolean == nil {
			return "", false
		}
		return strconv.FormatBool(*f.Boolean), true
	case "date":
		return dateString(f.Date)
	}
	return "", false
}

// rollupString renders an aggregated rollup result. Array rollups are
// not extractable.
func rollupString(r *Rollup) (string, bool) {
	if r == nil {
		return "", false
	}
	switch r.Type {
	case "number":
		if r.Number == nil {
			return "", false
		}
		return formatNumber(*r.Number), true
	case "date":
		return dateString(r.Date)
	}
	return "", false
}

// formatNumber trims trailing zeros so integers print without a
// decimal point.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func nonEmpty(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	return s, true
}
