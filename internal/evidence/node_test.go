package evidence

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// #region constructor-tests
func TestNewPublic_RequiresURL(t *testing.T) {
	cases := []string{"", "not a url", "/relative/path", "ftp://example.com/x", "https://"}
	for _, raw := range cases {
		_, err := NewPublic(raw, "snippet", "q", time.Time{})
		if !errors.Is(err, ErrMissingURL) {
			t.Errorf("NewPublic(%q): expected ErrMissingURL, got %v", raw, err)
		}
	}
}

func TestNewPublic_Success(t *testing.T) {
	n, err := NewPublic("https://www.Example.com/about/", "Jane Doe is CTO", "\"Jane Doe\" keynote", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Tag() != VerifiedPublic {
		t.Errorf("expected verified-public, got %s", n.Tag())
	}
	if n.Origin() != OriginWeb {
		t.Errorf("expected web origin, got %s", n.Origin())
	}
	if n.Ref() != "https://example.com/about" {
		t.Errorf("expected normalized ref, got %q", n.Ref())
	}
	if n.Host() != "example.com" {
		t.Errorf("expected host example.com, got %q", n.Host())
	}
	if n.ID() == "" {
		t.Error("expected generated id")
	}
}

func TestNewMeeting_RequiresSource(t *testing.T) {
	_, err := NewMeeting("", "we met", time.Now(), 0.5)
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
	_, err = NewDocument("  ", "resume", time.Now(), 0.5)
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource for document, got %v", err)
	}
}

func TestNewEmail_TaggedVerifiedMeeting(t *testing.T) {
	n, err := NewEmail("42", "thread", time.Now(), 0.4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Tag() != VerifiedMeeting || n.Origin() != OriginEmail {
		t.Errorf("expected verified-meeting/email, got %s/%s", n.Tag(), n.Origin())
	}
}

func TestNewSearchSummary_RejectsVerifiedTags(t *testing.T) {
	for _, tag := range []Tag{VerifiedMeeting, VerifiedPublic, VerifiedPDF} {
		_, err := NewSearchSummary("q", "summary", tag, time.Time{})
		if err == nil {
			t.Errorf("expected rejection for %s", tag)
		}
	}
	n, err := NewSearchSummary("q", "summary", InferredMedium, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Tag() != InferredMedium {
		t.Errorf("expected inferred-medium, got %s", n.Tag())
	}
}

func TestExcerptTruncated(t *testing.T) {
	long := strings.Repeat("é", MaxExcerptRunes+50)
	n, err := NewMeeting("1", long, time.Now(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len([]rune(n.Excerpt())); got != MaxExcerptRunes {
		t.Errorf("expected %d runes, got %d", MaxExcerptRunes, got)
	}
}

func TestNewEnrichment(t *testing.T) {
	n, err := NewEnrichment("pdl-123", "https://www.linkedin.com/in/janedoe/", "Jane Doe, CTO at Acme", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Tag() != InferredHigh || n.Origin() != OriginEnrichment {
		t.Errorf("expected inferred-high enrichment node, got %s/%s", n.Tag(), n.Origin())
	}
	if n.Ref() != "pdl-123" || n.Host() != "linkedin.com" {
		t.Errorf("unexpected ref %q host %q", n.Ref(), n.Host())
	}

	n, err = NewEnrichment("", "https://linkedin.com/in/janedoe", "", time.Time{})
	if err != nil || n.Ref() != "https://linkedin.com/in/janedoe" {
		t.Errorf("expected identifier url as ref, got %q (%v)", n.Ref(), err)
	}
	if _, err := NewEnrichment("", "not a url", "", time.Time{}); !errors.Is(err, ErrMissingSource) {
		t.Errorf("expected ErrMissingSource, got %v", err)
	}
	if _, err := Restore(Record{Origin: OriginEnrichment, Tag: VerifiedPublic, Ref: "x", URL: "https://linkedin.com/in/x"}); !errors.Is(err, ErrTagNotAllowed) {
		t.Errorf("enrichment must not carry verified-public, got %v", err)
	}
}

// #endregion constructor-tests

// #region restore-tests
func TestRestore_AppliesChecks(t *testing.T) {
	_, err := Restore(Record{ID: "x", Origin: OriginSearchSummary, Tag: VerifiedPublic, Ref: "q", URL: "https://a.com"})
	if !errors.Is(err, ErrTagNotAllowed) {
		t.Fatalf("expected ErrTagNotAllowed, got %v", err)
	}
	_, err = Restore(Record{ID: "x", Origin: OriginWeb, Tag: VerifiedPublic, Ref: "https://a.com"})
	if !errors.Is(err, ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}
}

func TestRecordJSONRoundTripKeepsIdentity(t *testing.T) {
	n, err := NewPublic("https://example.com/p", "text", "q", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"tag":"verified-public"`) {
		t.Errorf("expected textual tag in %s", data)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back, err := Restore(rec)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if back.ID() != n.ID() || back.Tag() != n.Tag() || back.Ref() != n.Ref() {
		t.Errorf("restored node differs: %+v vs %+v", back.Record(), n.Record())
	}
}

// #endregion restore-tests

// #region tag-tests
func TestParseTag(t *testing.T) {
	for _, tag := range AllTags() {
		got, err := ParseTag(tag.String())
		if err != nil || got != tag {
			t.Errorf("ParseTag(%q) = %v, %v", tag.String(), got, err)
		}
	}
	got, err := ParseTag("[INFERRED-HIGH]")
	if err != nil || got != InferredHigh {
		t.Errorf("bracketed form: got %v, %v", got, err)
	}
	if _, err := ParseTag("verified-rumor"); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestTagClasses(t *testing.T) {
	if !VerifiedPDF.IsVerified() || VerifiedPDF.IsInferred() {
		t.Error("verified-pdf misclassified")
	}
	if !InferredLow.IsInferred() || InferredLow.IsVerified() {
		t.Error("inferred-low misclassified")
	}
	if Unknown.IsVerified() || Unknown.IsInferred() {
		t.Error("unknown misclassified")
	}
}

// #endregion tag-tests
