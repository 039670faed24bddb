// Package textgrid reads and writes Praat TextGrid annotations.
//
// Both text layouts Praat produces are accepted: the long ("full") layout with
// "xmin = ..." assignments and the short layout with bare values. Files may be
// UTF-8 or UTF-16 (with byte-order mark).
//
// Only the values matter to the parser, so it tokenizes the document into
// quoted strings, numbers and <exists>/<absent> flags, ignoring keys, "=",
// bracketed indexes and "!" comments, and then reads those values in the
// fixed order both layouts share.
package textgrid

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Tier classes.
const (
	IntervalTier = "IntervalTier"
	TextTier     = "TextTier"
)

var (
	// ErrSyntax is returned when a document is not a well-formed TextGrid.
	ErrSyntax = errors.New("textgrid: syntax error")

	// ErrTierNotFound is returned by TextGrid.Tier for an unknown tier name.
	ErrTierNotFound = errors.New("textgrid: tier not found")
)

// Interval is one labelled span of an interval tier.
type Interval struct {
	XMin float64 `msgpack:"xmin" json:"xmin"`
	XMax float64 `msgpack:"xmax" json:"xmax"`
	Text string  `msgpack:"text" json:"text"`
}

// Duration returns XMax - XMin in seconds.
func (iv Interval) Duration() float64 {
	return iv.XMax - iv.XMin
}

// Point is one mark of a point (text) tier.
type Point struct {
	Time float64 `msgpack:"time" json:"time"`
	Mark string  `msgpack:"mark" json:"mark"`
}

// Tier is a named layer of the annotation. Interval tiers fill Intervals,
// point tiers fill Points.
type Tier struct {
	Class     string     `msgpack:"class" json:"class"`
	Name      string     `msgpack:"name" json:"name"`
	XMin      float64    `msgpack:"xmin" json:"xmin"`
	XMax      float64    `msgpack:"xmax" json:"xmax"`
	Intervals []Interval `msgpack:"intervals,omitempty" json:"intervals,omitempty"`
	Points    []Point    `msgpack:"points,omitempty" json:"points,omitempty"`
}

// Within returns the intervals of t that lie inside [xmin, xmax]. A small
// tolerance absorbs the rounding Praat applies to shared boundaries.
func (t *Tier) Within(xmin, xmax float64) []Interval {
	const eps = 1e-6
	var out []Interval
	for _, iv := range t.Intervals {
		if iv.XMin >= xmin-eps && iv.XMax <= xmax+eps {
			out = append(out, iv)
		}
	}
	return out
}

// TextGrid is a parsed annotation.
type TextGrid struct {
	XMin  float64 `msgpack:"xmin" json:"xmin"`
	XMax  float64 `msgpack:"xmax" json:"xmax"`
	Tiers []Tier  `msgpack:"tiers" json:"tiers"`
}

// Tier returns the tier with the given name.
func (g *TextGrid) Tier(name string) (*Tier, error) {
	for i := range g.Tiers {
		if g.Tiers[i].Name == name {
			return &g.Tiers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTierNotFound, name)
}

// Read parses a TextGrid from r.
func Read(r io.Reader) (*TextGrid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("textgrid: read: %w", err)
	}
	return Parse(data)
}

// Parse parses a TextGrid document.
func Parse(data []byte) (*TextGrid, error) {
	p := &parser{lex: newLexer(decodeText(data))}

	fileType, err := p.str()
	if err != nil {
		return nil, err
	}
	if fileType != "ooTextFile" {
		return nil, fmt.Errorf("%w: file type %q", ErrSyntax, fileType)
	}
	class, err := p.str()
	if err != nil {
		return nil, err
	}
	if class != "TextGrid" {
		return nil, fmt.Errorf("%w: object class %q", ErrSyntax, class)
	}

	g := &TextGrid{}
	if g.XMin, err = p.num(); err != nil {
		return nil, err
	}
	if g.XMax, err = p.num(); err != nil {
		return nil, err
	}
	exists, err := p.flag()
	if err != nil {
		return nil, err
	}
	if !exists {
		return g, nil
	}
	n, err := p.count()
	if err != nil {
		return nil, err
	}
	g.Tiers = make([]Tier, 0, n)
	for i := 0; i < n; i++ {
		tier, err := p.tier()
		if err != nil {
			return nil, fmt.Errorf("tier %d: %w", i+1, err)
		}
		g.Tiers = append(g.Tiers, tier)
	}
	return g, nil
}

type parser struct {
	lex *lexer
}

func (p *parser) next(want tokenKind) (token, error) {
	tok, err := p.lex.next()
	if err != nil {
		return token{}, err
	}
	if tok.kind == tokEOF {
		return token{}, fmt.Errorf("%w: unexpected end of file, want %s", ErrSyntax, want)
	}
	if tok.kind != want {
		return token{}, fmt.Errorf("%w: line %d: got %s %q, want %s", ErrSyntax, tok.line, tok.kind, tok.text, want)
	}
	return tok, nil
}

func (p *parser) str() (string, error) {
	tok, err := p.next(tokString)
	return tok.text, err
}

func (p *parser) num() (float64, error) {
	tok, err := p.next(tokNumber)
	if err != nil {
		return 0, err
	}
	return tok.num, nil
}

func (p *parser) count() (int, error) {
	v, err := p.num()
	if err != nil {
		return 0, err
	}
	if v < 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: bad count %v", ErrSyntax, v)
	}
	// Every counted element spans at least one character of the rest of
	// the document, so larger counts cannot be satisfied.
	if v > float64(p.lex.remaining()) {
		return 0, fmt.Errorf("%w: count %v exceeds the rest of the document", ErrSyntax, v)
	}
	return int(v), nil
}

func (p *parser) flag() (bool, error) {
	tok, err := p.next(tokFlag)
	if err != nil {
		return false, err
	}
	switch tok.text {
	case "exists":
		return true, nil
	case "absent":
		return false, nil
	}
	return false, fmt.Errorf("%w: line %d: unknown flag <%s>", ErrSyntax, tok.line, tok.text)
}

func (p *parser) tier() (Tier, error) {
	var (
		t   Tier
		err error
	)
	if t.Class, err = p.str(); err != nil {
		return t, err
	}
	if t.Name, err = p.str(); err != nil {
		return t, err
	}
	if t.XMin, err = p.num(); err != nil {
		return t, err
	}
	if t.XMax, err = p.num(); err != nil {
		return t, err
	}
	n, err := p.count()
	if err != nil {
		return t, err
	}

	switch t.Class {
	case IntervalTier:
		t.Intervals = make([]Interval, 0, n)
		for i := 0; i < n; i++ {
			var iv Interval
			if iv.XMin, err = p.num(); err != nil {
				return t, err
			}
			if iv.XMax, err = p.num(); err != nil {
				return t, err
			}
			if iv.Text, err = p.str(); err != nil {
				return t, err
			}
			if iv.XMax < iv.XMin {
				return t, fmt.Errorf("%w: interval %d of %q ends before it starts", ErrSyntax, i+1, t.Name)
			}
			t.Intervals = append(t.Intervals, iv)
		}
	case TextTier:
		t.Points = make([]Point, 0, n)
		for i := 0; i < n; i++ {
			var pt Point
			if pt.Time, err = p.num(); err != nil {
				return t, err
			}
			if pt.Mark, err = p.str(); err != nil {
				return t, err
			}
			t.Points = append(t.Points, pt)
		}
	default:
		return t, fmt.Errorf("%w: unknown tier class %q", ErrSyntax, t.Class)
	}
	return t, nil
}
