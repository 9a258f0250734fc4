// Package notify turns domain events into queued emails and delivers them.
package notify

import (
	"fmt"
	"html"
	"regexp"
	"time"

	"hrm/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)

// Rendered is a template after substitution.
type Rendered struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Render substitutes {{name}} placeholders in tpl. Values in the HTML body are
// escaped, values in the subject are not. Unknown placeholders stay verbatim.
func Render(tpl *models.EmailTemplate, vars map[string]interface{}) Rendered {
	return Rendered{
		Subject: substitute(tpl.Subject, vars, false),
		HTML:    substitute(tpl.HTMLBody, vars, true),
	}
}

func substitute(s string, vars map[string]interface{}, escape bool) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := vars[name]
		if !ok {
			return match
		}
		out := stringify(v)
		if escape {
			out = html.EscapeString(out)
		}
		return out
	})
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// Placeholders lists the distinct placeholder names in s, in order of first use.
func Placeholders(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
