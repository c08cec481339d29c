package websearch

import (
	"fmt"
	"strings"
)

// #region battery
type template struct {
	pattern string
	family  string
}

// visibilityTemplates is the fixed sweep battery. Each pattern takes the
// quoted subject name.
var visibilityTemplates = []template{
	{`%s TED`, "ted"},
	{`%s TEDx`, "tedx"},
	{`site:ted.com %s`, "ted"},
	{`site:youtube.com %s TEDx`, "tedx"},
	{`%s keynote`, "keynote"},
	{`%s conference talk`, "conference"},
	{`%s summit speaker`, "summit"},
	{`%s panel discussion`, "panel"},
	{`%s podcast`, "podcast"},
	{`%s webinar`, "webinar"},
	{`%s interview video`, "interview_video"},
	{`%s fireside chat`, "interview_video"},
	{`%s YouTube talk`, "youtube_talk"},
	{`%s Vimeo talk`, "youtube_talk"},
	{`%s SlideShare`, "youtube_talk"},
}

// TEDFamilies are the families whose execution alone earns visibility credit.
var TEDFamilies = map[string]bool{"ted": true, "tedx": true}

// VisibilityQueries builds the sweep battery for a subject. A company adds a
// company-qualified variant.
func VisibilityQueries(name, company string) []Query {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	quoted := quote(name)
	out := make([]Query, 0, len(visibilityTemplates)+1)
	for _, tpl := range visibilityTemplates {
		out = append(out, Query{
			Text:    fmt.Sprintf(tpl.pattern, quoted),
			Intent:  IntentVisibility,
			Family:  tpl.family,
			Subject: name,
		})
	}
	if c := strings.TrimSpace(company); c != "" {
		out = append(out, Query{
			Text:    fmt.Sprintf(`%s %s keynote OR conference OR podcast`, quoted, quote(c)),
			Intent:  IntentVisibility,
			Family:  "company",
			Subject: name,
		})
	}
	return out
}

// IdentityQueries builds the searches used to pin down who the subject is.
func IdentityQueries(name, company, title string) []Query {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	quoted := quote(name)
	texts := []string{
		quoted + " linkedin",
	}
	if c := strings.TrimSpace(company); c != "" {
		texts = append(texts, quoted+" "+quote(c), quoted+" "+quote(c)+" linkedin")
	}
	if t := strings.TrimSpace(title); t != "" {
		texts = append(texts, quoted+" "+quote(t))
	}
	out := make([]Query, len(texts))
	for i, text := range texts {
		out[i] = Query{Text: text, Intent: IntentIdentity, Subject: name}
	}
	return out
}

// RequiredVisibilityQueries lists the sweep battery text only, for failure
// reports.
func RequiredVisibilityQueries(name string) []string {
	qs := VisibilityQueries(name, "")
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Text
	}
	return out
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}

// #endregion battery
