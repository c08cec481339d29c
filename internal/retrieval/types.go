package retrieval

import (
	"time"

	"github.com/danielpatrickdp/briefgate/internal/evidence"
)

// #region config
// RetrievalConfig holds the window, similarity floor and limits for
// keyword + semantic retrieval.
type RetrievalConfig struct {
	WindowDays          int           `mapstructure:"window_days" yaml:"window_days"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" yaml:"similarity_threshold"` // min cosine similarity per chunk
	TopK                int           `mapstructure:"top_k" yaml:"top_k"`                               // max records from semantic search
	MaxResults          int           `mapstructure:"max_results" yaml:"max_results"`                   // cap on merged nodes, 0 = no cap
	EmbedTimeout        time.Duration `mapstructure:"embed_timeout" yaml:"embed_timeout"`
}

// DefaultConfig returns sensible defaults for retrieval.
func DefaultConfig() RetrievalConfig {
	return RetrievalConfig{
		WindowDays:          90,
		SimilarityThreshold: 0.3,
		TopK:                10,
		MaxResults:          50,
		EmbedTimeout:        10 * time.Second,
	}
}

// #endregion config

// #region result
// Result is the merged output of one retrieval.
type Result struct {
	Nodes         []evidence.Node
	RecordIDs     []int64 // records behind Nodes, same order
	KeywordHits   int
	SemanticHits  int
	SemanticError error // set when the query could not be embedded
	Reason        string
}

// hit is one scored record before it becomes a node.
type hit struct {
	recordID int64
	score    float64
	excerpt  string
}

// #endregion result
