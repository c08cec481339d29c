package brief

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielpatrickdp/briefgate/internal/enrichment"
	"github.com/danielpatrickdp/briefgate/internal/entity"
	"github.com/danielpatrickdp/briefgate/internal/eval"
	"github.com/danielpatrickdp/briefgate/internal/evidence"
	"github.com/danielpatrickdp/briefgate/internal/gate"
	"github.com/danielpatrickdp/briefgate/internal/graph"
	"github.com/danielpatrickdp/briefgate/internal/logging"
	"github.com/danielpatrickdp/briefgate/internal/retrieval"
	"github.com/danielpatrickdp/briefgate/internal/signals"
	"github.com/danielpatrickdp/briefgate/internal/store"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
	"github.com/danielpatrickdp/briefgate/internal/tagfilter"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
	"github.com/danielpatrickdp/briefgate/internal/worker"
)

// #region deps
// Deps wires a Pipeline. Search, Enricher and Synthesizer may be nil: a nil
// search provider executes no queries, a nil enricher skips enrichment and a
// nil synthesizer falls back to extractive drafting. A nil Eval uses the
// default bars.
type Deps struct {
	Store       *store.Store
	Resolver    *entity.Resolver
	Retriever   *retrieval.Retriever
	Search      websearch.Provider
	Enricher    enrichment.Provider
	Synthesizer synthesis.Synthesizer
	Gate        *gate.Gate
	Eval        *eval.EvalHarness
	SearchCfg   websearch.Config
	Research    ResearchConfig
	Logger      *slog.Logger
}

// Pipeline produces gated briefs.
type Pipeline struct {
	store     *store.Store
	resolver  *entity.Resolver
	retriever *retrieval.Retriever
	sweeper   *websearch.Sweeper
	enricher  enrichment.Provider
	synth     synthesis.Synthesizer
	fallback  synthesis.Synthesizer
	gate      *gate.Gate
	filter    tagfilter.Policy
	eval      *eval.EvalHarness
	research  ResearchConfig
	logger    *slog.Logger
}

// NewPipeline creates a pipeline from d.
func NewPipeline(d Deps) *Pipeline {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = entity.NewResolver(d.Store, logger)
	}
	g := d.Gate
	if g == nil {
		g = gate.NewGate(gate.DefaultGateConfig())
	}
	research := d.Research
	if research.Workers <= 0 {
		research.Workers = DefaultResearchConfig().Workers
	}
	if research.CallTimeout <= 0 {
		research.CallTimeout = DefaultResearchConfig().CallTimeout
	}
	p := &Pipeline{
		store:     d.Store,
		resolver:  resolver,
		retriever: d.Retriever,
		enricher:  d.Enricher,
		synth:     d.Synthesizer,
		fallback:  synthesis.Extractive{},
		gate:      g,
		filter:    tagfilter.PolicyFor(g.Config()),
		eval:      d.Eval,
		research:  research,
		logger:    logger,
	}
	if p.retriever == nil {
		p.retriever = retrieval.NewRetriever(d.Store, nil, retrieval.DefaultConfig(), logger)
	}
	if p.synth == nil {
		p.synth = p.fallback
	}
	if p.eval == nil {
		p.eval = eval.NewEvalHarness(eval.DefaultEvalConfig())
	}
	if d.Search != nil {
		p.sweeper = websearch.NewSweeper(d.Search, d.SearchCfg, logger)
	}
	return p
}

// #endregion deps

// #region run
// Run builds one brief. The only errors returned are ErrMalformedInput and
// local store failures; upstream providers degrade to empty evidence and the
// gates decide what that means.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	meetingAt, err := validate(req)
	if err != nil {
		return Result{}, err
	}

	person, company, err := p.resolve(ctx, req)
	if err != nil {
		return Result{}, err
	}
	subject := subjectFor(req, person, company)
	entities := make([]store.Entity, 0, 2)
	for _, e := range []*store.Entity{person, company} {
		if e != nil {
			entities = append(entities, *e)
		}
	}

	snap, err := p.store.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot: %w", err)
	}

	retrieved, err := p.retriever.Retrieve(ctx, entities, snap, req.WindowDays, req.Topic)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve: %w", err)
	}
	p.logger.Info("retrieval complete",
		"subject", subject.Name,
		"snapshot", snap.Version,
		"nodes", len(retrieved.Nodes),
		"keyword_hits", retrieved.KeywordHits,
		"semantic_hits", retrieved.SemanticHits,
	)

	var outcomes []websearch.Outcome
	var found *enrichment.Result
	if req.DeepResearch {
		outcomes, found = p.deepResearch(ctx, subject, person)
		if found != nil {
			subject = applyEnrichment(subject, *found)
			if person != nil {
				if _, err := p.resolver.Enrich(ctx, person.ID, *found); err != nil {
					p.logger.Warn("persist enrichment failed", "entity_id", person.ID, "error", err)
				}
			}
		}
	}

	b := graph.NewBuilder(subject.Name, subject.Aliases)
	b.AddNodes(retrieved.Nodes)
	if n, ok := enrichmentNode(found, person); ok {
		b.AddNode(n)
	}
	for _, o := range outcomes {
		b.RecordSearch(o)
	}
	g := b.Build()
	lock := signals.Score(g, subject)
	conflicts := signals.Contradictions(g, subject)
	if high := signals.HighSeverity(conflicts); high > 0 {
		p.logger.Warn("sources contradict subject facts",
			"subject", subject.Name,
			"high", high,
			"total", len(conflicts),
		)
	}

	res := Result{
		EntityLockScore:      lock.Score,
		Lock:                 lock,
		SourceRecordIDs:      g.SourceRecordIDs(),
		VisibilityConfidence: eval.VisibilityConfidence(g.Ledger()),
		Ledger:               g.Ledger(),
		Contradictions:       conflicts,
		Subject:              subject.Name,
	}
	for _, e := range entities {
		res.EntityIDs = append(res.EntityIDs, e.ID)
	}

	var decision gate.GateDecision
	if !req.DeepResearch {
		decision = p.gate.NotRun(lock.Score)
	} else {
		decision = p.gate.PreSynthesis(g.Counts(), lock.Score)
	}

	if !decision.Halted {
		draft := p.draft(ctx, synthesis.Input{
			Subject:   subject,
			Topic:     req.Topic,
			MeetingAt: meetingAt,
			Graph:     g,
			Mode:      decision.Mode,
			LockScore: lock.Score,
			Allowed:   p.filter.Allowed(decision.Mode, lock.Score),
		})
		checked := p.eval.Run(draft.Sections, g)
		if len(checked.DanglingCitations) > 0 {
			p.logger.Warn("draft cites nodes outside the graph",
				"subject", subject.Name,
				"dangling", checked.DanglingCitations,
			)
		}
		res.Eval = &checked
		coverage := coverageOf(draft, checked.Coverage)
		if req.DeepResearch {
			decision = p.gate.Evaluate(g.Counts(), lock.Score, coverage)
		} else {
			decision.Coverage = coverage
		}
		res.Coverage = coverage
		if !decision.Halted {
			res.Sections = p.filter.Filter(draft.Sections, decision.Mode, lock.Score)
		}
	}

	res.Mode = decision.Mode
	res.GateStatus = decision.Status
	res.Reason = decision.Reason
	res.Decision = decision
	if res.Sections == nil {
		res.Sections = []synthesis.Section{}
	}
	res.Markdown = Render(res, subject, g)

	p.logger.Info("brief gated",
		"subject", subject.Name,
		"mode", res.Mode,
		"status", res.GateStatus,
		"lock", lock.Score,
		"coverage", res.Coverage,
		"visibility_confidence", res.VisibilityConfidence,
		"sections", len(res.Sections),
	)

	res.LogID = p.log(req, subject, g, res)
	return res, nil
}

// #endregion run

// #region validate
var meetingLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

func validate(req Request) (time.Time, error) {
	hasPerson := strings.TrimSpace(req.Person) != "" || strings.TrimSpace(req.Email) != ""
	hasCompany := strings.TrimSpace(req.Company) != "" || entity.NormalizeDomain(req.Domain) != ""
	if !hasPerson && !hasCompany {
		return time.Time{}, fmt.Errorf("%w: person or company is required", ErrMalformedInput)
	}
	if req.WindowDays < 0 {
		return time.Time{}, fmt.Errorf("%w: window_days must not be negative", ErrMalformedInput)
	}
	if strings.TrimSpace(req.Person) == "" && strings.TrimSpace(req.Email) != "" && entity.NormalizeEmail(req.Email) == "" && !hasCompany {
		return time.Time{}, fmt.Errorf("%w: email %q is not usable", ErrMalformedInput, req.Email)
	}
	raw := strings.TrimSpace(req.MeetingAt)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range meetingLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: meeting time %q", ErrMalformedInput, raw)
}

// #endregion validate

// #region resolve
func (p *Pipeline) resolve(ctx context.Context, req Request) (*store.Entity, *store.Entity, error) {
	var person, company *store.Entity

	email := entity.NormalizeEmail(req.Email)
	if strings.TrimSpace(req.Person) != "" || email != "" {
		e, err := p.resolver.Resolve(ctx, entity.Query{Name: req.Person, Email: email, Type: store.TypePerson})
		if err != nil {
			return nil, nil, fmt.Errorf("resolve person: %w", err)
		}
		person = &e
	}

	domain := entity.NormalizeDomain(req.Domain)
	if strings.TrimSpace(req.Company) != "" || domain != "" {
		e, err := p.resolver.Resolve(ctx, entity.Query{Name: req.Company, Domain: domain, Type: store.TypeCompany})
		if err != nil {
			return nil, nil, fmt.Errorf("resolve company: %w", err)
		}
		company = &e
	}
	return person, company, nil
}

// subjectFor assembles what the graph is expected to confirm. Stored
// canonical values win over request fields since they were verified by an
// earlier enrichment.
func subjectFor(req Request, person, company *store.Entity) signals.Subject {
	s := signals.Subject{
		Company:       strings.TrimSpace(req.Company),
		Title:         strings.TrimSpace(req.Title),
		Location:      strings.TrimSpace(req.Location),
		IdentifierURL: strings.TrimSpace(req.IdentifierURL),
	}
	if company != nil && s.Company == "" {
		s.Company = company.Name
	}
	if person == nil {
		s.Name = company.Name
		s.Aliases = company.Aliases
		s.Company = ""
		return s
	}
	s.Name = person.Name
	if n := strings.TrimSpace(req.Person); n != "" {
		s.Name = n
	}
	s.Aliases = person.Aliases
	s.Emails = person.Emails
	s.Company = firstNonEmpty(person.CanonicalCompany, s.Company)
	s.Title = firstNonEmpty(person.CanonicalTitle, s.Title)
	s.Location = firstNonEmpty(person.CanonicalLocation, s.Location)
	s.IdentifierURL = firstNonEmpty(s.IdentifierURL, person.IdentifierURL)
	return s
}

// enrichmentNode represents the provider's match as an inferred node so the
// identifier it supplies is citable. Without a fresh match, facts persisted
// by an earlier enrichment are used.
func enrichmentNode(found *enrichment.Result, person *store.Entity) (evidence.Node, bool) {
	var (
		ref, identifier string
		excerpt         string
		at              time.Time
	)
	switch {
	case found != nil:
		ref, identifier = found.ExternalID, found.IdentifierURL
		excerpt = profileLine(found.Name, found.Title, found.Company, found.Location)
		at = time.Now().UTC()
	case person != nil && person.EnrichedAt != nil:
		ref, identifier = person.ExternalID, person.IdentifierURL
		excerpt = profileLine(person.Name, person.CanonicalTitle, person.CanonicalCompany, person.CanonicalLocation)
		at = *person.EnrichedAt
	default:
		return evidence.Node{}, false
	}
	n, err := evidence.NewEnrichment(ref, identifier, excerpt, at)
	if err != nil {
		return evidence.Node{}, false
	}
	return n, true
}

func profileLine(name, title, company, location string) string {
	line := strings.TrimSpace(name)
	role := strings.TrimSpace(title)
	if c := strings.TrimSpace(company); c != "" {
		role = strings.TrimSpace(role + " at " + c)
	}
	for _, part := range []string{role, strings.TrimSpace(location)} {
		if part == "" {
			continue
		}
		if line != "" {
			line += ", "
		}
		line += part
	}
	return line
}

func applyEnrichment(s signals.Subject, r enrichment.Result) signals.Subject {
	s.Company = firstNonEmpty(r.Company, s.Company)
	s.Title = firstNonEmpty(r.Title, s.Title)
	s.Location = firstNonEmpty(r.Location, s.Location)
	s.IdentifierURL = firstNonEmpty(s.IdentifierURL, r.IdentifierURL)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// #endregion resolve

// #region research
// researchOut is what one deep research task produced.
type researchOut struct {
	outcomes []websearch.Outcome
	enriched *enrichment.Result
}

// deepResearch runs the search sweep and enrichment side by side. Both
// degrade to empty on failure.
func (p *Pipeline) deepResearch(ctx context.Context, subject signals.Subject, person *store.Entity) ([]websearch.Outcome, *enrichment.Result) {
	tasks := []worker.Task[researchOut]{
		func(ctx context.Context) researchOut {
			if p.sweeper == nil {
				p.logger.Warn("no search provider configured, visibility sweep skipped", "subject", subject.Name)
				return researchOut{}
			}
			company := subject.Company
			queries := websearch.VisibilityQueries(subject.Name, company)
			if person != nil {
				queries = append(queries, websearch.IdentityQueries(subject.Name, company, subject.Title)...)
			}
			return researchOut{outcomes: p.sweeper.Run(ctx, queries)}
		},
		func(ctx context.Context) researchOut {
			if p.enricher == nil || person == nil {
				return researchOut{}
			}
			req := enrichment.Request{
				Name:          subject.Name,
				Company:       subject.Company,
				Location:      subject.Location,
				IdentifierURL: subject.IdentifierURL,
			}
			if len(subject.Emails) > 0 {
				req.Email = subject.Emails[0]
			}
			if req.Empty() {
				return researchOut{}
			}
			callCtx, cancel := context.WithTimeout(ctx, p.research.CallTimeout)
			defer cancel()
			r, err := p.enricher.Enrich(callCtx, req)
			switch {
			case errors.Is(err, enrichment.ErrNotFound):
				p.logger.Info("enrichment found no match", "subject", subject.Name)
				return researchOut{}
			case err != nil:
				p.logger.Warn("enrichment degraded", "subject", subject.Name, "error", err)
				return researchOut{}
			}
			return researchOut{enriched: &r}
		},
	}

	results := worker.Run(ctx, worker.NewPool(p.research.Workers, 0), tasks)
	var out researchOut
	for _, r := range results {
		out.outcomes = append(out.outcomes, r.outcomes...)
		if r.enriched != nil {
			out.enriched = r.enriched
		}
	}
	return out.outcomes, out.enriched
}

// #endregion research

// #region synthesize
func (p *Pipeline) draft(ctx context.Context, in synthesis.Input) synthesis.Draft {
	d, err := p.synth.Draft(ctx, in)
	if err == nil {
		return d
	}
	p.logger.Warn("synthesis degraded, using extractive draft", "subject", in.Subject.Name, "error", err)
	d, _ = p.fallback.Draft(ctx, in)
	return d
}

// coverageOf caps a synthesizer-reported coverage at what the graph
// supports.
func coverageOf(d synthesis.Draft, computed float64) float64 {
	if d.Coverage == nil {
		return computed
	}
	reported := *d.Coverage
	if reported < 0 {
		reported = 0
	}
	if reported < computed {
		return reported
	}
	return computed
}

// #endregion synthesize

// #region log
func (p *Pipeline) log(req Request, subject signals.Subject, g *graph.Graph, res Result) string {
	briefJSON, err := json.Marshal(res)
	if err != nil {
		p.logger.Warn("encode brief failed", "error", err)
	}
	evidenceJSON, err := json.Marshal(g.Snapshot())
	if err != nil {
		p.logger.Warn("encode evidence failed", "error", err)
	}
	gateJSON, err := json.Marshal(gateRecord(req, subject, res, p.gate.Config()))
	if err != nil {
		p.logger.Warn("encode gate record failed", "error", err)
	}

	id, err := logging.LogBrief(p.store.DB(), logging.BriefLog{
		Person:               strings.TrimSpace(req.Person),
		Company:              strings.TrimSpace(req.Company),
		Topic:                req.Topic,
		MeetingAt:            req.MeetingAt,
		BriefJSON:            string(briefJSON),
		Markdown:             res.Markdown,
		EntityLockScore:      res.EntityLockScore,
		CoveragePct:          res.Coverage * 100,
		VisibilityConfidence: res.VisibilityConfidence,
		GateStatus:           string(res.GateStatus),
		Mode:                 string(res.Mode),
		Reason:               res.Reason,
		SourceRecordIDs:      res.SourceRecordIDs,
		EvidenceJSON:         string(evidenceJSON),
		GateJSON:             string(gateJSON),
	})
	if err != nil {
		p.logger.Warn("brief log write failed", "subject", subject.Name, "error", err)
		return ""
	}
	return id
}

func gateRecord(req Request, s signals.Subject, res Result, cfg gate.GateConfig) logging.GateRecord {
	rec := logging.GateRecord{
		Subject:         s.Name,
		Aliases:         s.Aliases,
		Emails:          s.Emails,
		Company:         s.Company,
		Title:           s.Title,
		Location:        s.Location,
		IdentifierURL:   s.IdentifierURL,
		DeepResearch:    req.DeepResearch,
		LockScore:       res.Lock.Score,
		LockSignals:     []string{},
		Coverage:        res.Coverage,
		CoverageChecked: res.Decision.CoverageChecked,
		Thresholds: logging.GateThresholds{
			MinExecutedQueries: cfg.MinExecutedQueries,
			MinSubjectQueries:  cfg.MinSubjectQueries,
			InferenceThreshold: cfg.InferenceThreshold,
			PartialThreshold:   cfg.PartialThreshold,
			CoverageFull:       cfg.CoverageFull,
			CoveragePartial:    cfg.CoveragePartial,
			CoverageLow:        cfg.CoverageLow,
		},
		Mode:   string(res.Mode),
		Status: string(res.GateStatus),
		Reason: res.Reason,
	}
	for _, c := range res.Contradictions {
		rec.Contradictions = append(rec.Contradictions, logging.Conflict{
			Field:    c.Field,
			Expected: c.Expected,
			Found:    c.Found,
			Severity: string(c.Severity),
			Sources:  c.Sources,
		})
	}
	if res.Eval != nil {
		rec.Eval = &logging.EvalRecord{
			Passed:            res.Eval.Passed,
			Reason:            res.Eval.Reason,
			Metrics:           map[string]float64{},
			DanglingCitations: res.Eval.DanglingCitations,
		}
		for _, m := range res.Eval.Metrics {
			rec.Eval.Metrics[m.Name] = m.Value
		}
	}
	for _, sig := range res.Lock.Signals {
		rec.LockSignals = append(rec.LockSignals, string(sig.Type))
	}
	for _, v := range res.Decision.VetoSignals {
		rec.Vetoes = append(rec.Vetoes, string(v.Status))
	}
	return rec
}

// #endregion log
