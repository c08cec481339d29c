package synthesis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/signals"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// #region helpers
func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder("Jane Doe", nil)
	m, err := evidence.NewMeeting("12", "Pilot kickoff with Jane Doe", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 0.9)
	if err != nil {
		t.Fatalf("meeting: %v", err)
	}
	b.AddNode(m)
	b.RecordSearch(websearch.Outcome{
		Query:    websearch.Query{Text: "q", Subject: "Jane Doe"},
		Response: websearch.Response{Results: []websearch.Result{{Title: "Jane Doe", Snippet: "CTO at Acme", URL: "https://acme.com/team"}}},
	})
	return b.Build()
}

// #endregion helpers

// #region parse-tests
func TestParseDraft(t *testing.T) {
	content := "```json\n" + `{
		"sections": [
			{"heading": "Background", "claims": [
				{"text": "Jane is CTO at Acme", "tag": "verified-public", "evidence_ids": ["E1"]},
				{"text": "bad tag", "tag": "verified-rumor"},
				{"text": "", "tag": "unknown"}
			]},
			{"heading": "Strategy", "strategic": true, "derived_from": ["verified-public", "nonsense"], "claims": [
				{"text": "Likely to push for speed", "tag": "INFERRED-HIGH"}
			]}
		]
	}` + "\n```"

	d, err := ParseDraft(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(d.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(d.Sections))
	}
	if len(d.Sections[0].Claims) != 1 {
		t.Errorf("expected invalid claims dropped, got %d", len(d.Sections[0].Claims))
	}
	s := d.Sections[1]
	if !s.Strategic || len(s.DerivedFrom) != 1 || s.DerivedFrom[0] != evidence.VerifiedPublic {
		t.Errorf("unexpected strategic section %+v", s)
	}
	if s.Claims[0].Tag != evidence.InferredHigh {
		t.Errorf("expected inferred-high, got %s", s.Claims[0].Tag)
	}
	if d.Coverage != nil {
		t.Error("expected nil coverage when not reported")
	}
}

func TestParseDraft_Invalid(t *testing.T) {
	if _, err := ParseDraft("not json"); err == nil {
		t.Fatal("expected error")
	}
}

// #endregion parse-tests

// #region extractive-tests
func TestExtractive_CitesEveryClaim(t *testing.T) {
	g := sampleGraph(t)
	d, err := Extractive{}.Draft(context.Background(), Input{
		Subject: signals.Subject{Name: "Jane Doe", Company: "Acme"},
		Graph:   g,
		Allowed: evidence.AllTags(),
	})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if len(d.Sections) < 2 {
		t.Fatalf("expected meeting and public sections, got %+v", d.Sections)
	}
	for _, s := range d.Sections {
		for _, c := range s.Claims {
			if c.Tag != evidence.Unknown && len(c.EvidenceIDs) == 0 {
				t.Errorf("claim %q has no evidence", c.Text)
			}
			for _, id := range c.EvidenceIDs {
				if _, ok := g.Node(id); !ok {
					t.Errorf("claim cites missing node %s", id)
				}
			}
		}
	}
}

func TestExtractive_RespectsAllowed(t *testing.T) {
	d, _ := Extractive{}.Draft(context.Background(), Input{
		Graph:   sampleGraph(t),
		Allowed: []evidence.Tag{evidence.VerifiedMeeting},
	})
	for _, s := range d.Sections {
		for _, c := range s.Claims {
			if c.Tag != evidence.VerifiedMeeting {
				t.Errorf("unexpected tag %s", c.Tag)
			}
		}
	}
}

// #endregion extractive-tests

// #region openai-tests
func TestOpenAI_Draft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		msgs := req["messages"].([]any)
		user := msgs[1].(map[string]any)["content"].(string)
		if !strings.Contains(user, "Allowed tags: verified-meeting, verified-public") {
			t.Errorf("prompt missing allowed tags: %s", user)
		}
		draft := `{"sections":[{"heading":"Background","claims":[{"text":"CTO at Acme","tag":"verified-public","evidence_ids":["x"]}]}]}`
		resp := map[string]any{
			"id":      "c1",
			"object":  "chat.completion",
			"choices": []any{map[string]any{"index": 0, "message": map[string]any{"role": "assistant", "content": draft}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d, err := o.Draft(context.Background(), Input{
		Subject: signals.Subject{Name: "Jane Doe"},
		Graph:   sampleGraph(t),
		Mode:    gate.ModeFull,
		Allowed: []evidence.Tag{evidence.VerifiedMeeting, evidence.VerifiedPublic},
	})
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if len(d.Sections) != 1 || d.Sections[0].Claims[0].Tag != evidence.VerifiedPublic {
		t.Errorf("unexpected draft %+v", d)
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatal("expected error without key")
	}
}

// #endregion openai-tests
