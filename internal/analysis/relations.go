package analysis

import (
	"strings"

	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
	"github.com/calegray/concepthub-backend/internal/types"
)

// RelationConfig carries the classification and pruning thresholds. They are
// deliberately operator-tunable rather than baked-in constants.
type RelationConfig struct {
	// Maximum edit distance for two names to count as synonyms.
	SynonymMaxDistance int
	// Edges whose running strength falls below this floor are not persisted.
	MinStrength float64
}

func RelationConfigFromEnv(log *logger.Logger) RelationConfig {
	return RelationConfig{
		SynonymMaxDistance: envutil.GetEnvAsInt("RELATION_SYNONYM_MAX_DISTANCE", 3, log),
		MinStrength:        envutil.GetEnvAsFloat("RELATION_MIN_STRENGTH", 0.05, log),
	}
}

// PairInput is one detected concept together with its store-wide total
// frequency, which normalizes the pair contribution.
type PairInput struct {
	Name           string
	DocFrequency   int
	TotalFrequency int64
}

// Contribution is a single document's evidence for one unordered pair.
// NameA < NameB always holds.
type Contribution struct {
	NameA string
	NameB string
	Kind  string
	Value float64
}

type RelationBuilder struct {
	cfg RelationConfig
}

func NewRelationBuilder(cfg RelationConfig) *RelationBuilder {
	if cfg.SynonymMaxDistance <= 0 {
		cfg.SynonymMaxDistance = 3
	}
	if cfg.MinStrength <= 0 {
		cfg.MinStrength = 0.05
	}
	return &RelationBuilder{cfg: cfg}
}

func (b *RelationBuilder) Config() RelationConfig { return b.cfg }

// Contributions computes the strength contribution of one document for
// every unordered pair of concepts it contains.
func (b *RelationBuilder) Contributions(concepts []PairInput) []Contribution {
	out := make([]Contribution, 0)
	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			a, c := concepts[i], concepts[j]
			if a.Name == c.Name {
				continue
			}
			value := pairContribution(a, c)
			if value <= 0 {
				continue
			}
			if a.Name > c.Name {
				a, c = c, a
			}
			out = append(out, Contribution{
				NameA: a.Name,
				NameB: c.Name,
				Kind:  b.Classify(a.Name, c.Name),
				Value: value,
			})
		}
	}
	return out
}

// pairContribution is min(freq_a, freq_b) / max(total_a, total_b), clamped
// into [0,1].
func pairContribution(a, b PairInput) float64 {
	minFreq := a.DocFrequency
	if b.DocFrequency < minFreq {
		minFreq = b.DocFrequency
	}
	maxTotal := a.TotalFrequency
	if b.TotalFrequency > maxTotal {
		maxTotal = b.TotalFrequency
	}
	if maxTotal <= 0 || minFreq <= 0 {
		return 0
	}
	value := float64(minFreq) / float64(maxTotal)
	if value > 1 {
		value = 1
	}
	return value
}

// Classify picks the relation kind for a pair of names. Whole-word
// containment ("design" inside "interaction design") marks a hierarchy;
// near-identical names (plural or hyphenation variants) mark synonyms.
func (b *RelationBuilder) Classify(nameA, nameB string) string {
	if containsWholeWord(nameA, nameB) || containsWholeWord(nameB, nameA) {
		return types.RelationHierarchical
	}
	if levenshtein(nameA, nameB) <= b.cfg.SynonymMaxDistance {
		return types.RelationSynonym
	}
	return types.RelationRelated
}

// MeetsFloor reports whether a running strength is high enough to persist.
func (b *RelationBuilder) MeetsFloor(strength float64) bool {
	return strength >= b.cfg.MinStrength
}

// ApplyContribution folds one document into an edge's running average.
func ApplyContribution(oldStrength float64, docCount int, contribution float64) float64 {
	strength := (oldStrength*float64(docCount) + contribution) / float64(docCount+1)
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	return strength
}

// RetractContribution reverses ApplyContribution for a document being
// re-analyzed, so the fresh pass starts from a clean average.
func RetractContribution(oldStrength float64, docCount int, contribution float64) float64 {
	if docCount <= 1 {
		return 0
	}
	strength := (oldStrength*float64(docCount) - contribution) / float64(docCount-1)
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	return strength
}

// containsWholeWord reports whether inner appears in outer aligned on word
// boundaries, and the names are not equal.
func containsWholeWord(outer, inner string) bool {
	if outer == inner || inner == "" {
		return false
	}
	idx := 0
	for {
		pos := strings.Index(outer[idx:], inner)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(inner)
		leftOK := start == 0 || outer[start-1] == ' '
		rightOK := end == len(outer) || outer[end] == ' '
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
		if idx >= len(outer) {
			return false
		}
	}
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
