package search

import (
	"strings"

	"github.com/google/uuid"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

const (
	TypeKeyword  = "keyword"
	TypeSemantic = "semantic"
	TypeConcept  = "concept"
	TypeHybrid   = "hybrid"
)

// Weight the semantic fallback carries when no embedding provider exists.
const semanticFallbackDecay = 0.85

// Title matches count this many times a body match.
const titleWeight = 3.0

// Weights blend the three signals in hybrid mode. They are normalized at
// load time so operators can supply any positive ratio.
type Weights struct {
	Keyword  float64
	Semantic float64
	Concept  float64
}

func WeightsFromEnv(log *logger.Logger) Weights {
	w := Weights{
		Keyword:  envutil.GetEnvAsFloat("SEARCH_WEIGHT_KEYWORD", 0.4, log),
		Semantic: envutil.GetEnvAsFloat("SEARCH_WEIGHT_SEMANTIC", 0.35, log),
		Concept:  envutil.GetEnvAsFloat("SEARCH_WEIGHT_CONCEPT", 0.25, log),
	}
	return w.normalized()
}

func (w Weights) normalized() Weights {
	sum := w.Keyword + w.Semantic + w.Concept
	if sum <= 0 {
		return Weights{Keyword: 0.4, Semantic: 0.35, Concept: 0.25}
	}
	return Weights{
		Keyword:  w.Keyword / sum,
		Semantic: w.Semantic / sum,
		Concept:  w.Concept / sum,
	}
}

// Signals is the per-document score breakdown returned alongside results.
type Signals struct {
	Keyword  float64 `json:"keyword"`
	Semantic float64 `json:"semantic"`
	Concept  float64 `json:"concept"`
}

type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights.normalized()}
}

func (s *Scorer) Weights() Weights { return s.weights }

// KeywordScore is the normalized term-frequency overlap between the query
// tokens and the document's title, content and summary. Title hits are
// weighted heavier than body hits.
func (s *Scorer) KeywordScore(queryTokens []string, title, content, summary string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	titleTF := termFrequencies(Tokenize(title))
	bodyTF := termFrequencies(Tokenize(content + " " + summary))

	var score float64
	for _, tok := range queryTokens {
		score += titleWeight * titleTF[tok]
		score += bodyTF[tok]
	}
	// Normalize by the best case of every query token dominating both fields.
	score /= float64(len(queryTokens)) * (titleWeight + 1)
	if score > 1 {
		score = 1
	}
	return score
}

// SemanticScore is the cosine similarity between the query embedding and
// the document embedding. Without embeddings it degrades to a decayed
// keyword score so semantic-mode queries still rank.
func (s *Scorer) SemanticScore(snap *Snapshot, id uuid.UUID, queryEmbedding []float32, keywordScore float64) float64 {
	docVec := snap.Embedding(id)
	if len(queryEmbedding) == 0 || len(docVec) == 0 {
		return keywordScore * semanticFallbackDecay
	}
	return CosineSimilarity(queryEmbedding, docVec)
}

// ConceptScore is the fraction of the document's concepts whose names
// appear in, or equal, query tokens.
func (s *Scorer) ConceptScore(queryTokens []string, conceptNames []string) float64 {
	if len(conceptNames) == 0 || len(queryTokens) == 0 {
		return 0
	}
	query := strings.Join(queryTokens, " ")
	matched := 0
	for _, name := range conceptNames {
		if conceptMatches(name, query, queryTokens) {
			matched++
		}
	}
	return float64(matched) / float64(len(conceptNames))
}

func conceptMatches(name, query string, queryTokens []string) bool {
	if strings.Contains(query, name) {
		return true
	}
	for _, tok := range queryTokens {
		if tok == name || strings.Contains(name, tok) {
			return true
		}
	}
	return false
}

// Blend combines the signals for the requested search type.
func (s *Scorer) Blend(searchType string, sig Signals) float64 {
	switch searchType {
	case TypeKeyword:
		return sig.Keyword
	case TypeSemantic:
		return sig.Semantic
	case TypeConcept:
		return sig.Concept
	default:
		return s.weights.Keyword*sig.Keyword +
			s.weights.Semantic*sig.Semantic +
			s.weights.Concept*sig.Concept
	}
}
