package evidence

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxExcerptRunes bounds the excerpt kept on a node.
const MaxExcerptRunes = 200

// #region node
// Node is one unit of evidence. All fields are set at construction and there
// are no setters; a correction is expressed as a new node.
type Node struct {
	id        string
	origin    Origin
	tag       Tag
	ref       string
	url       string
	excerpt   string
	query     string
	timestamp time.Time
	score     float64
}

func (n Node) ID() string           { return n.id }
func (n Node) Origin() Origin       { return n.origin }
func (n Node) Tag() Tag             { return n.tag }
func (n Node) Ref() string          { return n.ref }
func (n Node) URL() string          { return n.url }
func (n Node) Excerpt() string      { return n.excerpt }
func (n Node) Query() string        { return n.query }
func (n Node) Timestamp() time.Time { return n.timestamp }
func (n Node) Score() float64       { return n.score }

// Host returns the node URL's host without a leading "www.", or "".
func (n Node) Host() string {
	return HostOf(n.url)
}

// #endregion node

// #region constructors
// NewMeeting builds a verified-meeting node from a stored meeting record.
func NewMeeting(ref, excerpt string, at time.Time, score float64) (Node, error) {
	return build(Record{Origin: OriginMeeting, Tag: VerifiedMeeting, Ref: ref, Excerpt: excerpt, Timestamp: at, Score: score})
}

// NewEmail builds a verified-meeting node from a stored email thread.
func NewEmail(ref, excerpt string, at time.Time, score float64) (Node, error) {
	return build(Record{Origin: OriginEmail, Tag: VerifiedMeeting, Ref: ref, Excerpt: excerpt, Timestamp: at, Score: score})
}

// NewDocument builds a verified-pdf node from an ingested document extract.
func NewDocument(ref, excerpt string, at time.Time, score float64) (Node, error) {
	return build(Record{Origin: OriginPDF, Tag: VerifiedPDF, Ref: ref, Excerpt: excerpt, Timestamp: at, Score: score})
}

// NewPublic builds a verified-public node from an accepted web result.
// The url must be absolute http(s).
func NewPublic(rawURL, excerpt, query string, at time.Time) (Node, error) {
	norm, ok := NormalizeURL(rawURL)
	if !ok {
		return Node{}, fmt.Errorf("public node %q: %w", rawURL, ErrMissingURL)
	}
	return build(Record{Origin: OriginWeb, Tag: VerifiedPublic, Ref: norm, URL: strings.TrimSpace(rawURL), Excerpt: excerpt, Query: query, Timestamp: at})
}

// NewSearchSummary builds a node from a provider-written summary. Such a
// summary has no verifiable source, so only inferred-* or unknown tags apply.
func NewSearchSummary(query, excerpt string, tag Tag, at time.Time) (Node, error) {
	return build(Record{Origin: OriginSearchSummary, Tag: tag, Ref: query, Excerpt: excerpt, Query: query, Timestamp: at})
}

// NewEnrichment builds an inferred-high node from a people-data provider
// match. The provider vouches for the identifier but the match itself was
// never observed first hand, so no verified tag applies. ref is the
// provider's person id; identifierURL, when valid, becomes the node URL.
func NewEnrichment(ref, identifierURL, excerpt string, at time.Time) (Node, error) {
	rec := Record{Origin: OriginEnrichment, Tag: InferredHigh, Ref: ref, Excerpt: excerpt, Timestamp: at}
	if norm, ok := NormalizeURL(identifierURL); ok {
		rec.URL = strings.TrimSpace(identifierURL)
		if strings.TrimSpace(rec.Ref) == "" {
			rec.Ref = norm
		}
	}
	if strings.TrimSpace(rec.Ref) == "" {
		return Node{}, fmt.Errorf("enrichment node: %w", ErrMissingSource)
	}
	return build(rec)
}

// #endregion constructors

// #region record
// Record is the serializable form of a Node, used for audit snapshots.
type Record struct {
	ID        string    `json:"id"`
	Origin    Origin    `json:"origin"`
	Tag       Tag       `json:"tag"`
	Ref       string    `json:"ref"`
	URL       string    `json:"url,omitempty"`
	Excerpt   string    `json:"excerpt"`
	Query     string    `json:"query,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score,omitempty"`
}

// Record returns the serializable form of n.
func (n Node) Record() Record {
	return Record{
		ID:        n.id,
		Origin:    n.origin,
		Tag:       n.tag,
		Ref:       n.ref,
		URL:       n.url,
		Excerpt:   n.excerpt,
		Query:     n.query,
		Timestamp: n.timestamp,
		Score:     n.score,
	}
}

// Restore rebuilds a node from a record, applying the same checks as the
// constructors.
func Restore(r Record) (Node, error) {
	return build(r)
}

func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Record())
}

// #endregion record

// #region build
func build(r Record) (Node, error) {
	if !r.Origin.valid() {
		return Node{}, fmt.Errorf("origin %q: %w", r.Origin, ErrTagNotAllowed)
	}
	if !r.Tag.Valid() {
		return Node{}, fmt.Errorf("tag %d: %w", r.Tag, ErrTagNotAllowed)
	}
	if err := checkTag(r); err != nil {
		return Node{}, err
	}

	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Node{
		id:        id,
		origin:    r.Origin,
		tag:       r.Tag,
		ref:       strings.TrimSpace(r.Ref),
		url:       strings.TrimSpace(r.URL),
		excerpt:   truncateRunes(strings.TrimSpace(r.Excerpt), MaxExcerptRunes),
		query:     r.Query,
		timestamp: ts,
		score:     r.Score,
	}, nil
}

// checkTag enforces which origin may carry which tag.
func checkTag(r Record) error {
	if !r.Tag.IsVerified() {
		return nil
	}
	if strings.TrimSpace(r.Ref) == "" {
		return fmt.Errorf("%s node: %w", r.Tag, ErrMissingSource)
	}
	switch r.Tag {
	case VerifiedMeeting:
		if r.Origin != OriginMeeting && r.Origin != OriginEmail {
			return fmt.Errorf("%s from %s: %w", r.Tag, r.Origin, ErrTagNotAllowed)
		}
	case VerifiedPublic:
		if r.Origin != OriginWeb {
			return fmt.Errorf("%s from %s: %w", r.Tag, r.Origin, ErrTagNotAllowed)
		}
		if _, ok := NormalizeURL(r.URL); !ok {
			return fmt.Errorf("%s node: %w", r.Tag, ErrMissingURL)
		}
	case VerifiedPDF:
		if r.Origin != OriginPDF {
			return fmt.Errorf("%s from %s: %w", r.Tag, r.Origin, ErrTagNotAllowed)
		}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// #endregion build

// #region urls
// NormalizeURL folds the scheme to https, lower-cases the host, and drops
// "www.", the fragment and any trailing slash. ok is false unless raw is an
// absolute http(s) URL.
func NormalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	out := "https://" + host + path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, true
}

// HostOf returns the lower-cased host of raw without "www.", or "".
func HostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// #endregion urls
