// Package entity maps a person or company input to a canonical stored entity.
package entity

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"github.com/danielpatrickdp/briefgate/internal/enrichment"
	"github.com/danielpatrickdp/briefgate/internal/store"
)

// Query is the caller's description of an entity.
type Query struct {
	Name   string
	Email  string
	Domain string
	Type   store.EntityType
}

// Resolver finds or creates entities. Resolutions are serialized so two
// concurrent misses for the same identity cannot both create an entity.
type Resolver struct {
	mu     sync.Mutex
	store  *store.Store
	logger *slog.Logger
}

// NewResolver creates a resolver over s.
func NewResolver(s *store.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, logger: logger}
}

// Resolve returns the entity matching q. Signals are tried in order: exact
// email, exact domain (companies only), then case-insensitive name or alias.
// The oldest entity wins a tie within a signal. With no match a new entity is
// created. A matched entity gains any supplied identifiers it lacks.
func (r *Resolver) Resolve(ctx context.Context, q Query) (store.Entity, error) {
	if q.Type == "" {
		q.Type = store.TypePerson
	}
	name := strings.TrimSpace(q.Name)
	email := NormalizeEmail(q.Email)
	domain := NormalizeDomain(q.Domain)
	if name == "" && email == "" && domain == "" {
		return store.Entity{}, fmt.Errorf("resolve: no usable identifier")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	match, via, err := r.lookup(ctx, q.Type, name, email, domain)
	if err != nil {
		return store.Entity{}, err
	}

	if match == nil {
		if name == "" {
			name = fallbackName(email, domain)
		}
		e, err := r.store.CreateEntity(ctx, store.Entity{
			Name:    name,
			Type:    q.Type,
			Emails:  nonEmpty(email),
			Domains: nonEmpty(domain),
			Aliases: []string{name},
		})
		if err != nil {
			return store.Entity{}, fmt.Errorf("create entity: %w", err)
		}
		r.logger.Info("entity created", "id", e.ID, "type", e.Type, "name", e.Name)
		return e, nil
	}

	var aliases []string
	if name != "" {
		aliases = []string{name}
	}
	e, err := r.store.AppendIdentifiers(ctx, match.ID, nonEmpty(email), nonEmpty(domain), aliases)
	if err != nil {
		return store.Entity{}, fmt.Errorf("append identifiers: %w", err)
	}
	r.logger.Debug("entity resolved", "id", e.ID, "via", via)
	return e, nil
}

func (r *Resolver) lookup(ctx context.Context, typ store.EntityType, name, email, domain string) (*store.Entity, string, error) {
	if email != "" {
		found, err := r.store.FindByEmail(ctx, email)
		if err != nil {
			return nil, "", fmt.Errorf("find by email: %w", err)
		}
		if e := firstOfType(found, typ); e != nil {
			return e, "email", nil
		}
	}
	if domain != "" && typ == store.TypeCompany {
		found, err := r.store.FindByDomain(ctx, domain)
		if err != nil {
			return nil, "", fmt.Errorf("find by domain: %w", err)
		}
		if len(found) > 0 {
			return &found[0], "domain", nil
		}
	}
	if name != "" {
		found, err := r.store.FindByName(ctx, name, typ)
		if err != nil {
			return nil, "", fmt.Errorf("find by name: %w", err)
		}
		if len(found) > 0 {
			return &found[0], "name", nil
		}
	}
	return nil, "", nil
}

// Enrich records a successful verification as the entity's canonical facts.
func (r *Resolver) Enrich(ctx context.Context, entityID string, res enrichment.Result) (store.Entity, error) {
	e, err := r.store.SetCanonical(ctx, entityID, store.Canonical{
		Company:         res.Company,
		Title:           res.Title,
		Location:        res.Location,
		IdentifierURL:   res.IdentifierURL,
		ExternalID:      res.ExternalID,
		MatchConfidence: res.Likelihood,
	})
	if err != nil {
		return store.Entity{}, fmt.Errorf("enrich %s: %w", entityID, err)
	}
	return e, nil
}

// NormalizeEmail lower-cases a well-formed address and returns "" for
// anything that does not parse or lacks a dotted domain.
func NormalizeEmail(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return ""
	}
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || NormalizeDomain(addr.Address[at+1:]) == "" {
		return ""
	}
	return strings.ToLower(addr.Address)
}

// NormalizeDomain lower-cases a bare host name and returns "" when it is
// not a dotted name of letters, digits and hyphens.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, ".")
	if d == "" || !strings.Contains(d, ".") || len(d) > 253 {
		return ""
	}
	for _, label := range strings.Split(d, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return ""
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
				return ""
			}
		}
	}
	return d
}

// DomainOf returns the normalized domain of an email address.
func DomainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return NormalizeDomain(email[at+1:])
}

func firstOfType(es []store.Entity, typ store.EntityType) *store.Entity {
	for i := range es {
		if es[i].Type == typ {
			return &es[i]
		}
	}
	return nil
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func fallbackName(email, domain string) string {
	if email != "" {
		return email[:strings.Index(email, "@")]
	}
	return domain
}
