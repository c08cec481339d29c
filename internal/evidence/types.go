package evidence

import (
	"errors"
	"fmt"
	"strings"
)

// #region errors
var (
	// ErrMissingURL rejects a verified-public node without a valid absolute URL.
	ErrMissingURL = errors.New("verified-public node requires an absolute http(s) url")
	// ErrMissingSource rejects a verified node without a source reference.
	ErrMissingSource = errors.New("verified node requires a source reference")
	// ErrTagNotAllowed rejects a tag that the node's origin cannot carry.
	ErrTagNotAllowed = errors.New("tag not allowed for origin")
)

// #endregion errors

// #region origin
// Origin is the class of source a node was built from.
type Origin string

const (
	OriginMeeting       Origin = "meeting"
	OriginEmail         Origin = "email"
	OriginWeb           Origin = "web"
	OriginPDF           Origin = "pdf"
	OriginSearchSummary Origin = "search-summary"
	OriginEnrichment    Origin = "enrichment"
)

func (o Origin) valid() bool {
	switch o {
	case OriginMeeting, OriginEmail, OriginWeb, OriginPDF, OriginSearchSummary, OriginEnrichment:
		return true
	}
	return false
}

// #endregion origin

// #region tag
// Tag is the epistemic status of a node. It is fixed when the node is built.
type Tag uint8

const (
	tagInvalid Tag = iota
	VerifiedMeeting
	VerifiedPublic
	VerifiedPDF
	InferredHigh
	InferredMedium
	InferredLow
	Unknown
)

var tagNames = [...]string{
	tagInvalid:      "",
	VerifiedMeeting: "verified-meeting",
	VerifiedPublic:  "verified-public",
	VerifiedPDF:     "verified-pdf",
	InferredHigh:    "inferred-high",
	InferredMedium:  "inferred-medium",
	InferredLow:     "inferred-low",
	Unknown:         "unknown",
}

// AllTags lists every valid tag in severity order.
func AllTags() []Tag {
	return []Tag{VerifiedMeeting, VerifiedPublic, VerifiedPDF, InferredHigh, InferredMedium, InferredLow, Unknown}
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return ""
}

// Valid reports whether t is one of the seven known tags.
func (t Tag) Valid() bool {
	return t > tagInvalid && t <= Unknown
}

// IsVerified reports whether t is one of the verified-* tags.
func (t Tag) IsVerified() bool {
	return t == VerifiedMeeting || t == VerifiedPublic || t == VerifiedPDF
}

// IsInferred reports whether t is one of the inferred-* tags.
func (t Tag) IsInferred() bool {
	return t == InferredHigh || t == InferredMedium || t == InferredLow
}

// ParseTag accepts the canonical lower-case name and the bracketed upper-case
// form used in rendered prose ("[VERIFIED-PUBLIC]").
func ParseTag(s string) (Tag, error) {
	norm := strings.ToLower(strings.Trim(strings.TrimSpace(s), "[]"))
	for t := VerifiedMeeting; t <= Unknown; t++ {
		if tagNames[t] == norm {
			return t, nil
		}
	}
	return tagInvalid, fmt.Errorf("unknown evidence tag %q", s)
}

func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal invalid tag %d", t)
	}
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	parsed, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// #endregion tag
