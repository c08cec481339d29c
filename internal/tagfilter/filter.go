package tagfilter

import (
	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
)

// #region policy
// Policy is the output filter for one gate configuration. PartialThreshold
// splits CONSTRAINED output into its two bands and must be the gate's own
// threshold so the coverage band and the tag band move together.
type Policy struct {
	PartialThreshold int
}

// PolicyFor returns the policy matching cfg.
func PolicyFor(cfg gate.GateConfig) Policy {
	return Policy{PartialThreshold: cfg.PartialThreshold}
}

// #endregion policy

// #region allowed
// Allowed returns the tags permitted in output for mode and lockScore, in
// AllTags order. HALTED permits nothing.
func (p Policy) Allowed(mode gate.Mode, lockScore int) []evidence.Tag {
	var out []evidence.Tag
	for _, t := range evidence.AllTags() {
		if p.Permits(mode, lockScore, t) {
			out = append(out, t)
		}
	}
	return out
}

// Permits reports whether a claim tagged t may appear in output.
func (p Policy) Permits(mode gate.Mode, lockScore int, t evidence.Tag) bool {
	if !t.Valid() {
		return false
	}
	switch mode {
	case gate.ModeFull:
		return true
	case gate.ModeConstrained:
		if !t.IsInferred() {
			return true
		}
		if lockScore >= p.PartialThreshold {
			return t == evidence.InferredLow
		}
		return false
	}
	return false
}

// StrategicAllowed reports whether strategic-model sections may appear.
func StrategicAllowed(mode gate.Mode) bool {
	return mode == gate.ModeFull
}

// #endregion allowed

// #region filter
// Filter returns the sections permitted for mode and lockScore. Disallowed
// claims are removed, sections left empty are dropped, and strategic-model
// sections are dropped unless the mode allows them and they cite the node
// classes they derive from. The input is not modified, and filtering a
// filtered result returns it unchanged.
func (p Policy) Filter(sections []synthesis.Section, mode gate.Mode, lockScore int) []synthesis.Section {
	if mode != gate.ModeFull && mode != gate.ModeConstrained {
		return nil
	}
	var out []synthesis.Section
	for _, s := range sections {
		if s.Strategic && (!StrategicAllowed(mode) || !citesSources(s)) {
			continue
		}
		kept := synthesis.Section{
			Heading:     s.Heading,
			Strategic:   s.Strategic,
			DerivedFrom: append([]evidence.Tag(nil), s.DerivedFrom...),
		}
		for _, c := range s.Claims {
			if !p.Permits(mode, lockScore, c.Tag) {
				continue
			}
			kept.Claims = append(kept.Claims, synthesis.Claim{
				Text:        c.Text,
				Tag:         c.Tag,
				EvidenceIDs: append([]string(nil), c.EvidenceIDs...),
			})
		}
		if len(kept.Claims) == 0 {
			continue
		}
		out = append(out, kept)
	}
	return out
}

// citesSources reports whether a strategic section names at least one
// upstream node class, all of them valid.
func citesSources(s synthesis.Section) bool {
	if len(s.DerivedFrom) == 0 {
		return false
	}
	for _, t := range s.DerivedFrom {
		if !t.Valid() {
			return false
		}
	}
	return true
}

// #endregion filter
