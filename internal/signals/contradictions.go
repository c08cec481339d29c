package signals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/graph"
)

// #region types
// Severity ranks a contradiction. Employer and title conflicts are high.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Contradiction is a subject fact that a verified node states differently.
type Contradiction struct {
	Field    string   `json:"field"`
	Expected string   `json:"expected"`
	Found    string   `json:"found"`
	Severity Severity `json:"severity"`
	NodeIDs  []string `json:"node_ids"`
	Sources  []string `json:"sources"`
}

// #endregion types

// #region detect
const roles = `chief [a-z]+ officer|ceo|cto|cfo|coo|cmo|cpo|ciso|co-founder|cofounder|founder|managing director|general manager|vice president(?: of)?(?: [a-z]+)?|vp(?: of)?(?: [a-z]+)?|head of [a-z]+|director(?: of)?(?: [a-z]+)?|president|partner|engineer|manager`

var (
	employerPattern = regexp.MustCompile(`\b(?:[Ww]orks at|[Ww]orking at|[Ww]orked at|[Ee]mployed (?:at|by)|[Jj]oin(?:s|ed)|(?i:` + roles + `)\s+(?:at|of))\s+([A-Z][\w&.\-]*(?:\s+[A-Z][\w&.\-]*){0,3})`)
	locationPattern = regexp.MustCompile(`\b(?:[Bb]ased in|[Ll]ives in|[Ll]iving in|[Ll]ocated in|[Rr]elocated to)\s+([A-Z][\w.\-]*(?:[\s,]+[A-Z][\w.\-]*){0,2})`)
	rolePattern     = regexp.MustCompile(`\b(` + roles + `)\b`)
	roleLink        = regexp.MustCompile(`^(?:\s|,|-|:|\(|\bis\b|\bwas\b|\bnow\b|\bthe\b|\ba\b|\ban\b)*$`)
	sentenceBreak   = regexp.MustCompile(`[.!?;\n]+\s+|[.!?;\n]+$`)
)

var roleAbbrev = map[string]string{
	"ceo": "chief executive officer",
	"cto": "chief technology officer",
	"cfo": "chief financial officer",
	"coo": "chief operating officer",
	"cmo": "chief marketing officer",
	"cpo": "chief product officer",
	"vp":  "vice president",
}

// Contradictions lists employer, title and location values stated about the
// subject by verified-public or verified-meeting nodes that conflict with
// the subject's facts. Only sentences naming the subject are read, and a
// value that contains or is contained by the expected one is a difference
// of granularity, not a conflict. Values of one field that differ only in
// granularity are merged into the first entry. The result is ordered by
// first node.
func Contradictions(g *graph.Graph, s Subject) []Contradiction {
	needles := mentionNeedles(s)
	if len(needles) == 0 {
		return nil
	}
	var out []Contradiction
	add := func(field, expected, found string, sev Severity, n evidence.Node) {
		i := -1
		for j, c := range out {
			if c.Field == field && sameGranularity(c.Found, found) {
				i = j
				break
			}
		}
		if i < 0 {
			out = append(out, Contradiction{Field: field, Expected: expected, Found: found, Severity: sev})
			i = len(out) - 1
		}
		c := &out[i]
		for _, id := range c.NodeIDs {
			if id == n.ID() {
				return
			}
		}
		c.NodeIDs = append(c.NodeIDs, n.ID())
		c.Sources = append(c.Sources, sourceOf(n))
	}

	for _, n := range g.Nodes() {
		if n.Tag() != evidence.VerifiedPublic && n.Tag() != evidence.VerifiedMeeting {
			continue
		}
		for _, sentence := range sentences(n.Excerpt()) {
			if !mentionsAny(sentence, needles) {
				continue
			}
			if found, ok := conflictingEmployer(sentence, s); ok {
				add("employer", s.Company, found, SeverityHigh, n)
			}
			if found, ok := conflictingTitle(sentence, s.Title, needles); ok {
				add("title", s.Title, found, SeverityHigh, n)
			}
			if found, ok := conflictingLocation(sentence, s.Location); ok {
				add("location", s.Location, found, SeverityMedium, n)
			}
		}
	}
	return out
}

// HighSeverity counts the high-severity entries of cs.
func HighSeverity(cs []Contradiction) int {
	n := 0
	for _, c := range cs {
		if c.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

func (c Contradiction) String() string {
	return fmt.Sprintf("%s: expected %q, %s states %q", c.Field, c.Expected, strings.Join(c.Sources, ", "), c.Found)
}

// #endregion detect

// #region fields
func conflictingEmployer(sentence string, s Subject) (string, bool) {
	expected := strings.TrimSpace(s.Company)
	if len(expected) < 2 || containsFold(sentence, expected) {
		return "", false
	}
	for _, m := range employerPattern.FindAllStringSubmatch(sentence, -1) {
		found := trimValue(m[1])
		if found == "" || containsFold(found, s.Name) || sameGranularity(found, s.Location) {
			continue
		}
		if !sameGranularity(found, expected) {
			return found, true
		}
	}
	return "", false
}

// conflictingTitle reads only roles tied to the subject: "Jane Doe, CTO",
// "Jane Doe is the CTO", "CTO Jane Doe" or "... as CTO".
func conflictingTitle(sentence, expected string, needles []string) (string, bool) {
	expected = strings.TrimSpace(expected)
	if len(expected) < 2 || containsFold(sentence, expected) {
		return "", false
	}
	want := expandRole(expected)
	for _, found := range subjectRoles(sentence, needles) {
		if !sameGranularity(expandRole(found), want) {
			return found, true
		}
	}
	return "", false
}

func subjectRoles(sentence string, needles []string) []string {
	lower := strings.ToLower(sentence)
	var out []string
	for _, m := range rolePattern.FindAllStringSubmatchIndex(lower, -1) {
		start, end := m[0], m[1]
		found := trimRole(lower[m[2]:m[3]])
		if len(lower) == len(sentence) {
			found = trimRole(sentence[m[2]:m[3]])
		}
		if found == "" {
			continue
		}
		if before := strings.TrimSpace(lower[:start]); before == "as" || strings.HasSuffix(before, " as") {
			out = append(out, found)
			continue
		}
		if nextToSubject(lower, start, end, needles) {
			out = append(out, found)
		}
	}
	return out
}

// nextToSubject reports whether the role at lower[start:end] directly
// follows a subject mention through a short link, or directly precedes one.
func nextToSubject(lower string, start, end int, needles []string) bool {
	for _, n := range needles {
		n = strings.ToLower(n)
		for from := 0; ; {
			i := strings.Index(lower[from:], n)
			if i < 0 {
				break
			}
			at := from + i
			if at+len(n) <= start && roleLink.MatchString(lower[at+len(n):start]) {
				return true
			}
			if end <= at && strings.Trim(lower[end:at], " ,") == "" {
				return true
			}
			from = at + 1
		}
	}
	return false
}

func conflictingLocation(sentence, expected string) (string, bool) {
	expected = strings.TrimSpace(expected)
	if len(expected) < 2 || containsFold(sentence, expected) {
		return "", false
	}
	for _, m := range locationPattern.FindAllStringSubmatch(sentence, -1) {
		if found := trimValue(m[1]); found != "" && !sameGranularity(found, expected) {
			return found, true
		}
	}
	return "", false
}

// #endregion fields

// #region helpers
func mentionNeedles(s Subject) []string {
	var out []string
	for _, v := range append(append([]string{s.Name}, s.Aliases...), s.Emails...) {
		if v = strings.TrimSpace(v); len(v) >= 3 {
			out = append(out, v)
		}
	}
	return out
}

func mentionsAny(s string, needles []string) bool {
	for _, n := range needles {
		if containsFold(s, n) {
			return true
		}
	}
	return false
}

func sentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sameGranularity reports whether a and b are equal or one contains the
// other, ignoring case.
func sameGranularity(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func expandRole(role string) string {
	fields := strings.Fields(strings.ToLower(role))
	for i, f := range fields {
		if full, ok := roleAbbrev[strings.Trim(f, ",.")]; ok {
			fields[i] = full
		}
	}
	return strings.Join(fields, " ")
}

var roleTail = map[string]bool{"at": true, "of": true, "in": true, "and": true, "for": true, "with": true, "the": true}

func trimRole(role string) string {
	fields := strings.Fields(role)
	for len(fields) > 0 && roleTail[strings.ToLower(fields[len(fields)-1])] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func trimValue(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), ".,;:")
}

func sourceOf(n evidence.Node) string {
	if h := n.Host(); h != "" {
		return h
	}
	return fmt.Sprintf("%s:%s", n.Origin(), n.Ref())
}

// #endregion helpers
