package signals

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/graph"
)

// #region score
// Score computes the entity lock for subject from g. It is pure: the same
// graph and subject always give the same result. Each signal is awarded at
// most once and the total is capped at MaxScore.
func Score(g *graph.Graph, s Subject) EntityLock {
	public := g.NodesByTag(evidence.VerifiedPublic)
	var out []Signal

	if sig, ok := identifierSignal(public, byOrigin(g.Nodes(), evidence.OriginEnrichment), s); ok {
		out = append(out, sig)
	}
	if sig, ok := meetingSignal(g.NodesByTag(evidence.VerifiedMeeting), s); ok {
		out = append(out, sig)
	}

	facts := []struct {
		typ    SignalType
		label  string
		value  string
		points int
	}{
		{SignalEmployerPublic, "employer", s.Company, PointsEmployerPublic},
		{SignalTitlePublic, "title", s.Title, PointsTitlePublic},
		{SignalLocationPublic, "location", s.Location, PointsLocationPublic},
	}
	var agreeing []string
	var agreeNodes []string
	for _, f := range facts {
		nodes := stating(public, f.value)
		if len(nodes) == 0 {
			continue
		}
		out = append(out, Signal{
			Type:        f.typ,
			Points:      f.points,
			Description: fmt.Sprintf("%s %q stated in %d public source(s)", f.label, strings.TrimSpace(f.value), len(nodes)),
			NodeIDs:     ids(nodes),
		})
		if hosts := distinctHosts(nodes); hosts >= 2 {
			agreeing = append(agreeing, f.label)
			agreeNodes = append(agreeNodes, ids(nodes)...)
		}
	}
	if len(agreeing) > 0 {
		out = append(out, Signal{
			Type:        SignalIndependentAgreement,
			Points:      PointsIndependentAgreement,
			Description: fmt.Sprintf("independent domains agree on %s", strings.Join(agreeing, ", ")),
			NodeIDs:     dedupe(agreeNodes),
		})
	}

	total := 0
	for _, sig := range out {
		total += sig.Points
	}
	if total > MaxScore {
		total = MaxScore
	}
	return EntityLock{Score: total, Signals: out, Locked: total >= LockedThreshold}
}

// #endregion score

// #region identifier
// identifierSignal awards +10 for an identifier-bearing node in g, or +30
// instead when the identifier is corroborated. A caller-declared identifier
// counts only once search surfaces it, and a provider-supplied one counts
// on its own but is corroborated only by search. A profile node is also
// corroborated when a public node on another host states the same employer.
func identifierSignal(public, enriched []evidence.Node, s Subject) (Signal, bool) {
	declared, hasDeclared := evidence.NormalizeURL(s.IdentifierURL)

	var profiles []evidence.Node
	for _, n := range public {
		if (hasDeclared && n.Ref() == declared) || IsIdentifierURL(n.URL()) {
			profiles = append(profiles, n)
		}
	}
	var vouched []evidence.Node
	for _, n := range enriched {
		if n.URL() != "" {
			vouched = append(vouched, n)
		}
	}
	if len(profiles) == 0 && len(vouched) == 0 {
		return Signal{}, false
	}

	for _, n := range profiles {
		if hasDeclared && n.Ref() == declared {
			return Signal{
				Type:        SignalIdentifierCorroborated,
				Points:      PointsIdentifierCorroborated,
				Description: fmt.Sprintf("identifier %s found by search %q", declared, n.Query()),
				NodeIDs:     []string{n.ID()},
			}, true
		}
		if v, ok := vouchedFor(n, vouched); ok {
			return Signal{
				Type:        SignalIdentifierCorroborated,
				Points:      PointsIdentifierCorroborated,
				Description: fmt.Sprintf("identifier %s verified by enrichment and found by search %q", n.Ref(), n.Query()),
				NodeIDs:     []string{n.ID(), v.ID()},
			}, true
		}
		if other, ok := corroborating(n, public, s.Company); ok {
			return Signal{
				Type:        SignalIdentifierCorroborated,
				Points:      PointsIdentifierCorroborated,
				Description: fmt.Sprintf("identifier %s corroborated by %s", n.Ref(), other.Host()),
				NodeIDs:     []string{n.ID(), other.ID()},
			}, true
		}
	}

	present := Signal{Type: SignalIdentifierPresent, Points: PointsIdentifierPresent}
	if len(profiles) > 0 {
		present.Description = fmt.Sprintf("identifier %s present", profiles[0].Ref())
		present.NodeIDs = []string{profiles[0].ID()}
	} else {
		u, _ := evidence.NormalizeURL(vouched[0].URL())
		present.Description = fmt.Sprintf("identifier %s supplied by enrichment", u)
		present.NodeIDs = []string{vouched[0].ID()}
	}
	return present, true
}

// vouchedFor finds an enrichment node whose identifier is profile's URL.
func vouchedFor(profile evidence.Node, vouched []evidence.Node) (evidence.Node, bool) {
	for _, v := range vouched {
		if u, ok := evidence.NormalizeURL(v.URL()); ok && u == profile.Ref() {
			return v, true
		}
	}
	return evidence.Node{}, false
}

// corroborating finds a public node on a different host that states the same
// employer as profile.
func corroborating(profile evidence.Node, public []evidence.Node, company string) (evidence.Node, bool) {
	if len(strings.TrimSpace(company)) < 2 || !containsFold(profile.Excerpt(), company) {
		return evidence.Node{}, false
	}
	for _, n := range public {
		if n.ID() == profile.ID() || n.Host() == profile.Host() {
			continue
		}
		if containsFold(n.Excerpt(), company) {
			return n, true
		}
	}
	return evidence.Node{}, false
}

// IsIdentifierURL reports whether raw looks like a personal profile URL.
func IsIdentifierURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segs := pathSegments(u.Path)
	switch {
	case host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com"):
		return len(segs) >= 2 && segs[0] == "in"
	case host == "github.com", host == "x.com", host == "twitter.com":
		return len(segs) == 1
	case host == "crunchbase.com":
		return len(segs) >= 2 && segs[0] == "person"
	}
	return false
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

// #endregion identifier

// #region meeting
// meetingSignal awards +20 when a verified-meeting node names the subject by
// name, alias or email.
func meetingSignal(meetings []evidence.Node, s Subject) (Signal, bool) {
	needles := append([]string{s.Name}, s.Aliases...)
	needles = append(needles, s.Emails...)
	var hits []string
	for _, n := range meetings {
		for _, needle := range needles {
			if len(strings.TrimSpace(needle)) >= 3 && containsFold(n.Excerpt(), needle) {
				hits = append(hits, n.ID())
				break
			}
		}
	}
	if len(hits) == 0 {
		return Signal{}, false
	}
	return Signal{
		Type:        SignalMeetingConfirms,
		Points:      PointsMeetingConfirms,
		Description: fmt.Sprintf("identity confirmed by %d meeting record(s)", len(hits)),
		NodeIDs:     hits,
	}, true
}

// #endregion meeting

// #region helpers
func byOrigin(nodes []evidence.Node, o evidence.Origin) []evidence.Node {
	var out []evidence.Node
	for _, n := range nodes {
		if n.Origin() == o {
			out = append(out, n)
		}
	}
	return out
}

func stating(nodes []evidence.Node, value string) []evidence.Node {
	value = strings.TrimSpace(value)
	if len(value) < 2 {
		return nil
	}
	var out []evidence.Node
	for _, n := range nodes {
		if containsFold(n.Excerpt(), value) {
			out = append(out, n)
		}
	}
	return out
}

func distinctHosts(nodes []evidence.Node) int {
	hosts := map[string]bool{}
	for _, n := range nodes {
		if h := n.Host(); h != "" {
			hosts[h] = true
		}
	}
	return len(hosts)
}

func ids(nodes []evidence.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// containsFold reports whether sub occurs in s on word boundaries, ignoring
// case, so "CTO" does not match "director".
func containsFold(s, sub string) bool {
	text := strings.ToLower(s)
	needle := strings.ToLower(strings.TrimSpace(sub))
	if needle == "" {
		return false
	}
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// #endregion helpers
