package synthesis

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
)

// #region extractive
// Extractive drafts a brief directly from graph nodes without a language
// model. Every claim quotes one node, so coverage is complete whenever there
// is at least one claim.
type Extractive struct {
	// MaxPerSection bounds claims per section; zero means 10.
	MaxPerSection int
}

// Draft groups nodes by tag into sections and lists open questions for
// whatever the subject is missing.
func (e Extractive) Draft(_ context.Context, in Input) (Draft, error) {
	limit := e.MaxPerSection
	if limit <= 0 {
		limit = 10
	}
	allowed := map[evidence.Tag]bool{}
	for _, t := range in.Allowed {
		allowed[t] = true
	}

	groups := []struct {
		heading string
		tag     evidence.Tag
	}{
		{"Meeting history", evidence.VerifiedMeeting},
		{"Public footprint", evidence.VerifiedPublic},
		{"Documents", evidence.VerifiedPDF},
		{"Search summaries", evidence.InferredMedium},
	}

	var d Draft
	if in.Graph == nil {
		return d, nil
	}
	for _, grp := range groups {
		if len(allowed) > 0 && !allowed[grp.tag] {
			continue
		}
		nodes := in.Graph.NodesByTag(grp.tag)
		if len(nodes) == 0 {
			continue
		}
		sec := Section{Heading: grp.heading}
		for i, n := range nodes {
			if i >= limit {
				break
			}
			sec.Claims = append(sec.Claims, Claim{Text: claimText(n), Tag: grp.tag, EvidenceIDs: []string{n.ID()}})
		}
		d.Sections = append(d.Sections, sec)
	}

	if gaps := openQuestions(in); len(gaps) > 0 && (len(allowed) == 0 || allowed[evidence.Unknown]) {
		sec := Section{Heading: "Open questions"}
		for _, g := range gaps {
			sec.Claims = append(sec.Claims, Claim{Text: g, Tag: evidence.Unknown})
		}
		d.Sections = append(d.Sections, sec)
	}
	return d, nil
}

func claimText(n evidence.Node) string {
	switch n.Origin() {
	case evidence.OriginWeb:
		return fmt.Sprintf("%s (%s)", n.Excerpt(), n.URL())
	case evidence.OriginMeeting, evidence.OriginEmail:
		return fmt.Sprintf("%s [%s %s, %s]", n.Excerpt(), n.Origin(), n.Ref(), n.Timestamp().Format("2006-01-02"))
	}
	return n.Excerpt()
}

func openQuestions(in Input) []string {
	var out []string
	if in.Subject.Company == "" {
		out = append(out, "Current employer not established.")
	}
	if in.Subject.Title == "" {
		out = append(out, "Current title not established.")
	}
	if in.Subject.Location == "" {
		out = append(out, "Location not established.")
	}
	if in.Graph != nil && len(in.Graph.NodesByTag(evidence.VerifiedMeeting)) == 0 {
		out = append(out, "No prior interactions on record.")
	}
	return out
}

// #endregion extractive
