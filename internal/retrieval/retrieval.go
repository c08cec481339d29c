package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/danielpatrickdp/briefgate/internal/embedding"
	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/store"
)

// #region retriever
// Retriever merges keyword and semantic retrieval over stored source records.
type Retriever struct {
	store    *store.Store
	embedder embedding.Embedder
	config   RetrievalConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewRetriever creates a Retriever. A nil embedder disables semantic search.
func NewRetriever(s *store.Store, embedder embedding.Embedder, config RetrievalConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: s, embedder: embedder, config: config, logger: logger, now: time.Now}
}

// #endregion retriever

// #region retrieve
// Retrieve returns evidence nodes for entities from records visible in snap
// and inside the trailing window. When query is empty the entities' names
// and aliases are the search terms. An unavailable embedder leaves only
// keyword results; it is never an error.
func (r *Retriever) Retrieve(ctx context.Context, entities []store.Entity, snap store.Snapshot, windowDays int, query string) (Result, error) {
	if windowDays <= 0 {
		windowDays = r.config.WindowDays
	}
	since := r.now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	records, err := r.store.RecordsInWindow(ctx, ids, since, snap)
	if err != nil {
		return Result{}, fmt.Errorf("retrieval records: %w", err)
	}
	if len(records) == 0 {
		return Result{Reason: "no source records in window"}, nil
	}

	text := strings.TrimSpace(query)
	if text == "" {
		text = entityTerms(entities)
	}

	keyword := keywordHits(records, tokenize(text))
	semantic, semErr := r.semanticHits(ctx, records, text)
	if semErr != nil {
		r.logger.Warn("semantic retrieval degraded", "error", semErr)
	}

	merged := merge(keyword, semantic, records)
	if r.config.MaxResults > 0 && len(merged) > r.config.MaxResults {
		merged = merged[:r.config.MaxResults]
	}

	byID := make(map[int64]store.SourceRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	res := Result{
		KeywordHits:   len(keyword),
		SemanticHits:  len(semantic),
		SemanticError: semErr,
	}
	needles := mentionTerms(entities)
	for _, h := range merged {
		n, err := toNode(byID[h.recordID], h, needles)
		if err != nil {
			r.logger.Warn("skipping record", "record_id", h.recordID, "error", err)
			continue
		}
		res.Nodes = append(res.Nodes, n)
		res.RecordIDs = append(res.RecordIDs, h.recordID)
	}
	res.Reason = fmt.Sprintf("retrieved %d evidence items (keyword=%d, semantic=%d)",
		len(res.Nodes), res.KeywordHits, res.SemanticHits)
	return res, nil
}

// #endregion retrieve

// #region keyword
// keywordHits scores each record by the mean over terms of tf/(tf+1).
func keywordHits(records []store.SourceRecord, terms []string) []hit {
	if len(terms) == 0 {
		return nil
	}
	var out []hit
	for _, rec := range records {
		tf := termFrequencies(rec.Title + " " + rec.Body)
		var sum float64
		for _, t := range terms {
			f := float64(tf[t])
			sum += f / (f + 1)
		}
		score := sum / float64(len(terms))
		if score <= 0 {
			continue
		}
		out = append(out, hit{recordID: rec.ID, score: score, excerpt: rec.Body})
	}
	return out
}

func entityTerms(entities []store.Entity) string {
	var parts []string
	for _, e := range entities {
		parts = append(parts, e.Name)
		parts = append(parts, e.Aliases...)
	}
	return strings.Join(parts, " ")
}

// #endregion keyword

// #region semantic
// semanticHits embeds text once and keeps, per record, its best chunk at or
// above the similarity floor. Chunks without embeddings are skipped.
func (r *Retriever) semanticHits(ctx context.Context, records []store.SourceRecord, text string) ([]hit, error) {
	if r.embedder == nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.config.EmbedTimeout)
	defer cancel()

	vecs, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, nil
	}
	q := vecs[0]

	var out []hit
	for _, rec := range records {
		best := hit{recordID: rec.ID, score: -1}
		for _, c := range rec.Chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			sim := embedding.Cosine(q, c.Embedding)
			if sim >= r.config.SimilarityThreshold && sim > best.score {
				best.score = sim
				best.excerpt = c.Text
			}
		}
		if best.score >= 0 {
			out = append(out, best)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if r.config.TopK > 0 && len(out) > r.config.TopK {
		out = out[:r.config.TopK]
	}
	return out, nil
}

// #endregion semantic

// #region merge
// merge dedupes by record ID keeping the higher score, then orders by score
// descending, timestamp descending and record ID.
func merge(keyword, semantic []hit, records []store.SourceRecord) []hit {
	at := make(map[int64]time.Time, len(records))
	for _, rec := range records {
		at[rec.ID] = rec.OccurredAt
	}
	best := make(map[int64]hit)
	for _, list := range [][]hit{keyword, semantic} {
		for _, h := range list {
			if cur, ok := best[h.recordID]; !ok || h.score > cur.score {
				best[h.recordID] = h
			}
		}
	}
	out := make([]hit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		ti, tj := at[out[i].recordID], at[out[j].recordID]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].recordID < out[j].recordID
	})
	return out
}

// #endregion merge

// #region nodes
func toNode(rec store.SourceRecord, h hit, needles []string) (evidence.Node, error) {
	ref := strconv.FormatInt(rec.ID, 10)
	excerpt := focusExcerpt(rec, h.excerpt, needles)
	switch rec.Kind {
	case store.KindMeeting:
		return evidence.NewMeeting(ref, excerpt, rec.OccurredAt, h.score)
	case store.KindEmail:
		return evidence.NewEmail(ref, excerpt, rec.OccurredAt, h.score)
	case store.KindPDF:
		return evidence.NewDocument(ref, excerpt, rec.OccurredAt, h.score)
	}
	return evidence.Node{}, fmt.Errorf("unknown record kind %q", rec.Kind)
}

// mentionTerms lists the names, aliases and emails a record excerpt should
// keep in view.
func mentionTerms(entities []store.Entity) []string {
	var out []string
	for _, e := range entities {
		for _, v := range append(append([]string{e.Name}, e.Aliases...), e.Emails...) {
			if v = strings.TrimSpace(v); len(v) >= 3 {
				out = append(out, v)
			}
		}
	}
	return out
}

// focusExcerpt returns the title-prefixed hit text when it already names an
// entity within the node's excerpt limit. Otherwise it returns the record
// from shortly before the first mention, so the node carries the mention
// even when it sits deep in a transcript.
func focusExcerpt(rec store.SourceRecord, text string, needles []string) string {
	prefix := ""
	if rec.Title != "" {
		prefix = rec.Title + ": "
	}
	head := prefix + text
	if len(needles) == 0 {
		return head
	}
	if at, n := firstMention(head, needles); at >= 0 && at+n <= evidence.MaxExcerptRunes {
		return head
	}
	for _, candidate := range []string{text, rec.Body} {
		at, _ := firstMention(candidate, needles)
		if at < 0 {
			continue
		}
		runes := []rune(candidate)
		start := at - excerptLead
		if start < 0 {
			start = 0
		}
		window := string(runes[start:])
		if start > 0 {
			window = "..." + window
		}
		return window
	}
	return head
}

// excerptLead is how many runes of context precede a mention in a focused
// excerpt.
const excerptLead = 40

// firstMention returns the rune offset and rune length of the earliest
// case-insensitive occurrence of any needle in s, or -1.
func firstMention(s string, needles []string) (int, int) {
	hay := []rune(s)
	for i := range hay {
		hay[i] = unicode.ToLower(hay[i])
	}
	best, bestLen := -1, 0
	for _, needle := range needles {
		nr := []rune(needle)
		for i := range nr {
			nr[i] = unicode.ToLower(nr[i])
		}
		if at := runeIndex(hay, nr); at >= 0 && (best < 0 || at < best) {
			best, bestLen = at, len(nr)
		}
	}
	return best, bestLen
}

func runeIndex(hay, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if hay[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

// #endregion nodes
