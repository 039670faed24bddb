// Package choose selects one recorded phoneme instance for each target
// position by comparing the target's phonetic neighbours with the neighbours
// each instance was recorded between.
//
// Two strategies are available. [DualEquality] buckets candidates by exact
// label matches of the left and right context. [DualSimilarity] scores them
// with the similarity of a [typeme.Tree]. Both are deterministic for a fixed
// inventory: ties go to the lower intonation, then to the first instance.
package choose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haivivi/unitsynth/pkg/corpus"
	"github.com/haivivi/unitsynth/pkg/typeme"
)

// Strategy names a selection algorithm.
type Strategy string

const (
	DualSimilarity Strategy = "dual_similarity"
	DualEquality   Strategy = "dual_equality"

	DefaultStrategy = DualSimilarity
)

var (
	// ErrInvalidStrategy is returned for a strategy name that is not known.
	ErrInvalidStrategy = errors.New("choose: invalid strategy")

	// ErrNoCandidate is returned when the inventory holds no instance of the
	// target phoneme. It wraps corpus.ErrUnknownPhoneme when the name was
	// never observed.
	ErrNoCandidate = errors.New("choose: no candidate")
)

// Strategies lists the known strategy names, default first.
func Strategies() []Strategy {
	return []Strategy{DualSimilarity, DualEquality}
}

// ParseStrategy resolves a strategy name. The empty string selects
// DefaultStrategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.TrimSpace(s)) {
	case "":
		return DefaultStrategy, nil
	case DualSimilarity:
		return DualSimilarity, nil
	case DualEquality:
		return DualEquality, nil
	}
	return "", fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidStrategy, s, DualSimilarity, DualEquality)
}

// Target is one position of the sequence to synthesise: the phoneme wanted
// and its neighbours in the target sequence. An empty neighbour marks a word
// edge.
type Target struct {
	Phoneme string
	Pre     string
	Nex     string
}

func (t Target) String() string {
	return fmt.Sprintf("%s [%s _ %s]", t.Phoneme, t.Pre, t.Nex)
}

// Targets turns a label sequence into targets, stripping stress digits. The
// first and last positions get an empty outer neighbour.
func Targets(seq []string) []Target {
	labels := make([]string, len(seq))
	for i, s := range seq {
		labels[i] = corpus.StripStress(s)
	}
	out := make([]Target, len(labels))
	for i, l := range labels {
		out[i].Phoneme = l
		if i > 0 {
			out[i].Pre = labels[i-1]
		}
		if i+1 < len(labels) {
			out[i].Nex = labels[i+1]
		}
	}
	return out
}

// Inventory is the part of corpus.Inventory a Selector reads.
type Inventory interface {
	Phoneme(name string) (*corpus.Phoneme, error)
}

// Config configures a Selector.
type Config struct {
	// Strategy defaults to DefaultStrategy.
	Strategy Strategy

	// Tree scores context similarity for DualSimilarity. Defaults to
	// typeme.Phonetic().
	Tree *typeme.Tree
}

// Selector picks instances from an inventory.
type Selector struct {
	inv      Inventory
	strategy Strategy
	tree     *typeme.Tree
}

// New returns a Selector over inv.
func New(inv Inventory, cfg Config) (*Selector, error) {
	strategy, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}
	tree := cfg.Tree
	if tree == nil {
		tree = typeme.Phonetic()
	}
	return &Selector{inv: inv, strategy: strategy, tree: tree}, nil
}

// Strategy returns the strategy in use.
func (s *Selector) Strategy() Strategy { return s.strategy }

// Choose returns the best instance for target.
func (s *Selector) Choose(target Target) (corpus.Instance, error) {
	p, err := s.inv.Phoneme(target.Phoneme)
	if err != nil {
		return corpus.Instance{}, fmt.Errorf("%w: %w", ErrNoCandidate, err)
	}
	if len(p.Instances) == 0 {
		return corpus.Instance{}, fmt.Errorf("%w: %q has no instances", ErrNoCandidate, target.Phoneme)
	}
	var i int
	switch s.strategy {
	case DualEquality:
		i = Equality(p.Instances, target.Pre, target.Nex)
	default:
		i = Similarity(s.tree, p.Instances, target.Pre, target.Nex)
	}
	return p.Instances[i], nil
}

// Equality buckets candidates by exact context match and returns the index
// of the lowest-intonation instance of the best non-empty bucket, in the
// order both, pre only, nex only, neither. A left-context match outranks a
// right-context match regardless of intonation. It returns -1 for an empty
// candidate list.
func Equality(candidates []corpus.Instance, pre, nex string) int {
	const (
		both = iota
		preOnly
		nexOnly
		neither
	)
	best := [4]int{-1, -1, -1, -1}
	for i, in := range candidates {
		var b int
		switch {
		case in.Pre == pre && in.Nex == nex:
			b = both
		case in.Pre == pre:
			b = preOnly
		case in.Nex == nex:
			b = nexOnly
		default:
			b = neither
		}
		if best[b] < 0 || candidates[best[b]].Intonation > in.Intonation {
			best[b] = i
		}
	}
	for _, i := range best {
		if i >= 0 {
			return i
		}
	}
	return -1
}

// Similarity scores every candidate by the tree similarity of its recorded
// neighbours to pre and nex and returns the index of the best one. A side
// whose target label is not in the tree adds nothing; a candidate without a
// node on a side the target has scores -1 there. Equal scores go to the lower
// intonation, then to the earlier candidate. It returns -1 for an empty
// candidate list.
func Similarity(tree *typeme.Tree, candidates []corpus.Instance, pre, nex string) int {
	preID, nexID := tree.Resolve(pre), tree.Resolve(nex)
	best, bestScore := -1, 0
	for i, in := range candidates {
		score := 0
		if preID != typeme.None {
			score += tree.Similarity(preID, tree.Resolve(in.Pre))
		}
		if nexID != typeme.None {
			score += tree.Similarity(nexID, tree.Resolve(in.Nex))
		}
		switch {
		case best < 0, score > bestScore:
		case score == bestScore && in.Intonation < candidates[best].Intonation:
		default:
			continue
		}
		best, bestScore = i, score
	}
	return best
}
