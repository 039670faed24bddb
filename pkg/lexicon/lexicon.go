// Package lexicon turns text into phoneme label sequences with a
// pronouncing dictionary.
//
// Pronunciations come from two places: the word tier of an annotated corpus,
// where each word interval is mapped to the phone intervals nested inside it,
// and dictionary files in the CMU Pronouncing Dictionary format. Words are
// keyed in lower case. The first pronunciation added for a word is the one
// used for synthesis.
package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/haivivi/unitsynth/pkg/textgrid"
)

// ErrUnknownWord is returned when text contains a word with no
// pronunciation.
var ErrUnknownWord = errors.New("lexicon: unknown word")

// Boundary is the label placed between words. It matches the silence
// phoneme of an annotated corpus.
const Boundary = ""

// Lexicon maps words to pronunciations.
type Lexicon struct {
	entries map[string][][]string
}

// New returns an empty lexicon.
func New() *Lexicon {
	return &Lexicon{entries: make(map[string][][]string)}
}

// Len returns the number of words.
func (l *Lexicon) Len() int { return len(l.entries) }

// Add records a pronunciation for word. Duplicate pronunciations and empty
// input are ignored. It reports whether the lexicon changed.
func (l *Lexicon) Add(word string, phones []string) bool {
	word = normalize(word)
	if word == "" || len(phones) == 0 {
		return false
	}
	for _, p := range l.entries[word] {
		if slices.Equal(p, phones) {
			return false
		}
	}
	l.entries[word] = append(l.entries[word], slices.Clone(phones))
	return true
}

// Lookup returns the preferred pronunciation of word.
func (l *Lexicon) Lookup(word string) ([]string, error) {
	p := l.entries[normalize(word)]
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWord, word)
	}
	return p[0], nil
}

// Pronunciations returns every pronunciation of word, preferred first.
func (l *Lexicon) Pronunciations(word string) [][]string {
	return l.entries[normalize(word)]
}

// Words returns the known words in sorted order.
func (l *Lexicon) Words() []string {
	out := make([]string, 0, len(l.entries))
	for w := range l.entries {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// Phonemes converts text into a label sequence with Boundary between words.
// Every unknown word is listed in the returned error.
func (l *Lexicon) Phonemes(text string) ([]string, error) {
	var (
		out     []string
		missing []string
	)
	for i, w := range Tokenize(text) {
		p, err := l.Lookup(w)
		if err != nil {
			missing = append(missing, w)
			continue
		}
		if i > 0 {
			out = append(out, Boundary)
		}
		out = append(out, p...)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWord, strings.Join(missing, ", "))
	}
	return out, nil
}

// Tokenize lower-cases text and splits it into words. Letters, digits and
// apostrophes form words; everything else separates them.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// ParsePhonemes reads an explicit label sequence: labels separated by
// spaces, with "|" marking a word boundary.
//
//	ParsePhonemes("HH AH0 L OW1 | W ER1 L D")
func ParsePhonemes(s string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ReplaceAll(s, "|", " | ")) {
		if f == "|" {
			if len(out) > 0 && out[len(out)-1] != Boundary {
				out = append(out, Boundary)
			}
			continue
		}
		out = append(out, strings.ToUpper(f))
	}
	if n := len(out); n > 0 && out[n-1] == Boundary {
		out = out[:n-1]
	}
	return out
}

// ReadCMUDict adds the entries of a CMU Pronouncing Dictionary file.
// Lines starting with ";;;" are comments; alternate pronunciations are
// written as "WORD(2)". It returns the number of pronunciations added.
func (l *Lexicon) ReadCMUDict(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	added, line := 0, 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, ";;;") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return added, fmt.Errorf("lexicon: line %d: missing pronunciation", line)
		}
		word := fields[0]
		if i := strings.IndexByte(word, '('); i > 0 && strings.HasSuffix(word, ")") {
			word = word[:i]
		}
		if l.Add(word, fields[1:]) {
			added++
		}
	}
	return added, sc.Err()
}

// LoadCMUDict reads the dictionary file at path into l.
func (l *Lexicon) LoadCMUDict(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return l.ReadCMUDict(f)
}

// AddGrid adds the word pronunciations found in an annotation: each
// labelled interval of wordTier maps to the labelled intervals of phoneTier
// inside it. It returns the number of pronunciations added.
func (l *Lexicon) AddGrid(g *textgrid.TextGrid, wordTier, phoneTier string) (int, error) {
	words, err := g.Tier(wordTier)
	if err != nil {
		return 0, err
	}
	phones, err := g.Tier(phoneTier)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, w := range words.Intervals {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		var labels []string
		for _, p := range phones.Within(w.XMin, w.XMax) {
			if p.Text != "" {
				labels = append(labels, p.Text)
			}
		}
		if l.Add(w.Text, labels) {
			added++
		}
	}
	return added, nil
}

// GridSource is the part of corpus.Inventory FromCorpus reads.
type GridSource interface {
	Words() []string
	Grid(key string) (*textgrid.TextGrid, error)
	PhoneTier() string
}

// FromCorpus builds a lexicon from every annotation of src. Items without
// the word tier are skipped; it is an error if none has it.
func FromCorpus(src GridSource, wordTier string) (*Lexicon, error) {
	l := New()
	seen := false
	for _, key := range src.Words() {
		g, err := src.Grid(key)
		if err != nil {
			return nil, err
		}
		if _, err := l.AddGrid(g, wordTier, src.PhoneTier()); err != nil {
			if errors.Is(err, textgrid.ErrTierNotFound) {
				continue
			}
			return nil, err
		}
		seen = true
	}
	if !seen && len(src.Words()) > 0 {
		return nil, fmt.Errorf("lexicon: no item has a %q tier: %w", wordTier, textgrid.ErrTierNotFound)
	}
	return l, nil
}
