// Package codec talks to the inference sidecar over gRPC. Messages are
// google.protobuf.Struct values so the sidecar can evolve fields freely.
package codec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/briefgate/internal/enrichment"
	"github.com/danielpatrickdp/briefgate/internal/synthesis"
	"github.com/danielpatrickdp/briefgate/internal/websearch"
)

// #region methods
const (
	methodEmbed      = "/briefgate.v1.CodecService/Embed"
	methodWebSearch  = "/briefgate.v1.CodecService/WebSearch"
	methodEnrich     = "/briefgate.v1.CodecService/Enrich"
	methodSynthesize = "/briefgate.v1.CodecService/Synthesize"
)

// #endregion methods

// #region client-struct
// CodecClient wraps the gRPC connection to the inference sidecar. It
// implements embedding.Embedder, websearch.Provider, enrichment.Provider
// and synthesis.Synthesizer.
type CodecClient struct {
	conn   grpc.ClientConnInterface
	closer func() error
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the sidecar at addr.
func NewCodecClient(addr string) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{conn: conn, closer: conn.Close}, nil
}

// NewCodecClientWithConn creates a CodecClient over an existing connection.
// Used for testing without a real gRPC server.
func NewCodecClientWithConn(conn grpc.ClientConnInterface) *CodecClient {
	return &CodecClient{conn: conn}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// #endregion close

func (c *CodecClient) call(ctx context.Context, method string, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// #region embed
// Embed returns one vector per text.
func (c *CodecClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.call(ctx, methodEmbed, map[string]any{"texts": toAnySlice(texts)})
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}
	rows, _ := resp["embeddings"].([]any)
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("embed rpc: got %d vectors for %d inputs", len(rows), len(texts))
	}
	out := make([][]float32, len(rows))
	for i, row := range rows {
		vals, _ := row.([]any)
		vec := make([]float32, len(vals))
		for j, v := range vals {
			f, _ := v.(float64)
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	return out, nil
}

// #endregion embed

// #region web-search
// Search runs a web search through the sidecar.
func (c *CodecClient) Search(ctx context.Context, query string, maxResults int) (websearch.Response, error) {
	resp, err := c.call(ctx, methodWebSearch, map[string]any{
		"query":       query,
		"max_results": float64(maxResults),
	})
	if err != nil {
		return websearch.Response{}, fmt.Errorf("web search rpc: %w", err)
	}
	out := websearch.Response{Summary: str(resp, "summary")}
	rows, _ := resp["results"].([]any)
	for _, row := range rows {
		m, _ := row.(map[string]any)
		out.Results = append(out.Results, websearch.Result{
			Title:   str(m, "title"),
			Snippet: str(m, "snippet"),
			URL:     str(m, "url"),
		})
	}
	if maxResults > 0 && len(out.Results) > maxResults {
		out.Results = out.Results[:maxResults]
	}
	return out, nil
}

// #endregion web-search

// #region enrich
// Enrich verifies a person through the sidecar's enrichment backend.
func (c *CodecClient) Enrich(ctx context.Context, req enrichment.Request) (enrichment.Result, error) {
	if req.Empty() {
		return enrichment.Result{}, errors.New("enrich rpc: no identifiers provided")
	}
	resp, err := c.call(ctx, methodEnrich, map[string]any{
		"email":          req.Email,
		"identifier_url": req.IdentifierURL,
		"name":           req.Name,
		"company":        req.Company,
		"location":       req.Location,
	})
	if err != nil {
		return enrichment.Result{}, fmt.Errorf("enrich rpc: %w", err)
	}
	switch status := str(resp, "status"); status {
	case "success":
	case "no_match":
		return enrichment.Result{}, enrichment.ErrNotFound
	default:
		return enrichment.Result{}, fmt.Errorf("enrich rpc: status %q: %s", status, str(resp, "error"))
	}
	likelihood, _ := resp["match_confidence"].(float64)
	return enrichment.Result{
		ExternalID:    str(resp, "person_id"),
		Name:          str(resp, "name"),
		Title:         str(resp, "title"),
		Company:       str(resp, "company"),
		Location:      str(resp, "location"),
		IdentifierURL: str(resp, "identifier_url"),
		Likelihood:    likelihood,
	}, nil
}

// #endregion enrich

// #region synthesize
// Draft asks the sidecar to draft sections for in.
func (c *CodecClient) Draft(ctx context.Context, in synthesis.Input) (synthesis.Draft, error) {
	allowed := make([]string, len(in.Allowed))
	for i, t := range in.Allowed {
		allowed[i] = t.String()
	}
	resp, err := c.call(ctx, methodSynthesize, map[string]any{
		"prompt":       synthesis.BuildPrompt(in),
		"allowed_tags": toAnySlice(allowed),
		"mode":         string(in.Mode),
	})
	if err != nil {
		return synthesis.Draft{}, fmt.Errorf("synthesize rpc: %w", err)
	}
	draft := str(resp, "draft_json")
	if strings.TrimSpace(draft) == "" {
		return synthesis.Draft{}, errors.New("synthesize rpc: empty draft")
	}
	return synthesis.ParseDraft(draft)
}

// #endregion synthesize

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
