// Package ingest appends internal source records (meetings, emails, PDFs)
// to the store, chunked and embedded for semantic retrieval.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/embedding"
	"github.com/danielpatrickdp/briefgate/internal/entity"
	"github.com/danielpatrickdp/briefgate/internal/store"
	"github.com/danielpatrickdp/briefgate/internal/worker"
)

// #region types
// Participant is a person attached to a record.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Item is one record to ingest.
type Item struct {
	Kind         store.Kind    `json:"kind"`
	ExternalID   string        `json:"external_id"`
	Title        string        `json:"title,omitempty"`
	Body         string        `json:"body"`
	Link         string        `json:"link,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
	Participants []Participant `json:"participants"`
	Company      string        `json:"company,omitempty"`
	Domain       string        `json:"domain,omitempty"`
}

// Report summarizes one sync run.
type Report struct {
	Created           int      `json:"created"`
	Duplicates        int      `json:"duplicates"`
	Failed            int      `json:"failed"`
	UnembeddedRecords int      `json:"unembedded_records"`
	Errors            []string `json:"errors,omitempty"`
}

type itemResult struct {
	created    bool
	unembedded bool
	err        error
}

// #endregion types

// #region syncer
// Syncer ingests items concurrently. Writes for one entity are serialized by
// the store, so a sync may run while briefs are being produced.
type Syncer struct {
	store     *store.Store
	resolver  *entity.Resolver
	embedder  embedding.Embedder
	pool      *worker.Pool
	chunkSize int
	logger    *slog.Logger
}

// NewSyncer creates a Syncer. A nil embedder stores chunks without vectors.
func NewSyncer(s *store.Store, resolver *entity.Resolver, embedder embedding.Embedder, pool *worker.Pool, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if pool == nil {
		pool = worker.NewPool(4, 30*time.Second)
	}
	return &Syncer{store: s, resolver: resolver, embedder: embedder, pool: pool, chunkSize: ChunkSize, logger: logger}
}

// Sync ingests items and reports what happened. Individual item failures
// are counted, not returned.
func (s *Syncer) Sync(ctx context.Context, items []Item) Report {
	tasks := make([]worker.Task[itemResult], len(items))
	for i, it := range items {
		tasks[i] = func(ctx context.Context) itemResult { return s.ingest(ctx, it) }
	}

	var rep Report
	for i, res := range worker.Run(ctx, s.pool, tasks) {
		switch {
		case res.err != nil:
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s/%s: %v", items[i].Kind, items[i].ExternalID, res.err))
		case res.created:
			rep.Created++
		default:
			rep.Duplicates++
		}
		if res.unembedded {
			rep.UnembeddedRecords++
		}
	}
	s.logger.Info("sync complete",
		"created", rep.Created, "duplicates", rep.Duplicates,
		"failed", rep.Failed, "unembedded", rep.UnembeddedRecords)
	return rep
}

func (s *Syncer) ingest(ctx context.Context, it Item) itemResult {
	if !it.Kind.Valid() {
		return itemResult{err: fmt.Errorf("invalid kind %q", it.Kind)}
	}
	if it.OccurredAt.IsZero() {
		return itemResult{err: fmt.Errorf("occurred_at is required")}
	}

	var ids []string
	for _, p := range it.Participants {
		e, err := s.resolver.Resolve(ctx, entity.Query{Name: p.Name, Email: p.Email, Type: store.TypePerson})
		if err != nil {
			s.logger.Warn("participant not resolved", "name", p.Name, "error", err)
			continue
		}
		ids = append(ids, e.ID)
	}
	if it.Company != "" || it.Domain != "" {
		e, err := s.resolver.Resolve(ctx, entity.Query{Name: it.Company, Domain: it.Domain, Type: store.TypeCompany})
		if err != nil {
			s.logger.Warn("company not resolved", "company", it.Company, "error", err)
		} else {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return itemResult{err: fmt.Errorf("no entity could be resolved")}
	}

	// A known record only gains participant links; its chunks are never
	// rebuilt, so it is not embedded again.
	_, err := s.store.FindSourceRecord(ctx, it.Kind, it.ExternalID)
	switch {
	case err == nil:
		if _, _, err := s.store.AppendSourceRecord(ctx, store.SourceRecord{
			EntityIDs:  ids,
			Kind:       it.Kind,
			ExternalID: it.ExternalID,
		}); err != nil {
			return itemResult{err: err}
		}
		return itemResult{}
	case !errors.Is(err, store.ErrNotFound):
		return itemResult{err: err}
	}

	chunks, unembedded := s.chunks(ctx, it)
	_, created, err := s.store.AppendSourceRecord(ctx, store.SourceRecord{
		EntityIDs:  ids,
		Kind:       it.Kind,
		ExternalID: it.ExternalID,
		Title:      it.Title,
		Body:       it.Body,
		Link:       it.Link,
		OccurredAt: it.OccurredAt,
		Chunks:     chunks,
	})
	if err != nil {
		return itemResult{err: err}
	}
	return itemResult{created: created, unembedded: created && unembedded}
}

// chunks splits the body and embeds it. Embedding failures keep the chunks
// without vectors so keyword retrieval still covers them.
func (s *Syncer) chunks(ctx context.Context, it Item) ([]store.Chunk, bool) {
	texts := ChunkText(it.Body, s.chunkSize)
	chunks := make([]store.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = store.Chunk{Index: i, Text: t}
	}
	if len(texts) == 0 {
		return chunks, false
	}
	if s.embedder == nil {
		return chunks, true
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		s.logger.Warn("embedding unavailable, storing chunks without vectors",
			"external_id", it.ExternalID, "error", err)
		return chunks, true
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	return chunks, false
}

// #endregion syncer

// #region decode
// DecodeItems reads items from a JSON array or from JSON lines, one object
// per line. Empty input yields no items.
func DecodeItems(r io.Reader) ([]Item, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	dec := json.NewDecoder(br)
	var items []Item
	if first == '[' {
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		return items, nil
	}
	for n := 1; ; n++ {
		var it Item
		err := dec.Decode(&it)
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode item %d: %w", n, err)
		}
		items = append(items, it)
	}
}

// firstByte returns the first non-space byte without consuming it.
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// #endregion decode
