package spin

import (
	"fmt"
	"strings"
)

type symbolKind uint8

const (
	symbolGlyph symbolKind = iota + 1
	symbolBonus
)

// Symbol is one cell value: either a plain glyph compared by value, or the
// bonus variant compared by its asset identity and distinct from every glyph.
type Symbol struct {
	kind  symbolKind
	glyph string
	asset string
}

// NewGlyphSymbol validates and builds a plain glyph symbol.
func NewGlyphSymbol(glyph string) (Symbol, error) {
	trimmed := strings.TrimSpace(glyph)
	if trimmed == "" {
		return Symbol{}, fmt.Errorf("%w: empty glyph", ErrInvalidSymbol)
	}
	return Symbol{kind: symbolGlyph, glyph: trimmed}, nil
}

// NewBonusSymbol validates and builds the image-backed bonus symbol.
func NewBonusSymbol(asset string) (Symbol, error) {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return Symbol{}, fmt.Errorf("%w: empty bonus asset", ErrInvalidSymbol)
	}
	return Symbol{kind: symbolBonus, asset: trimmed}, nil
}

// IsBonus reports whether the symbol is the bonus variant.
func (symbol Symbol) IsBonus() bool {
	return symbol.kind == symbolBonus
}

// Key returns the identity used for display and row comparison: the glyph
// value for glyphs, the asset name for the bonus variant.
func (symbol Symbol) Key() string {
	if symbol.kind == symbolBonus {
		return symbol.asset
	}
	return symbol.glyph
}

func (symbol Symbol) equals(other Symbol) bool {
	return symbol.kind == other.kind && symbol.Key() == other.Key()
}

// Grid is a rows × columns arrangement of symbols drawn for a single spin.
// It carries no identity and is immutable once built.
type Grid struct {
	rows    int
	columns int
	cells   []Symbol
}

// NewGrid builds a grid from cells listed row by row.
func NewGrid(rows int, columns int, cells []Symbol) (Grid, error) {
	if rows < 1 || columns < 1 {
		return Grid{}, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, rows, columns)
	}
	if len(cells) != rows*columns {
		return Grid{}, fmt.Errorf("%w: expected %d cells, got %d", ErrInvalidGrid, rows*columns, len(cells))
	}
	for _, cell := range cells {
		if cell.kind == 0 {
			return Grid{}, fmt.Errorf("%w: zero-value cell", ErrInvalidGrid)
		}
	}
	copied := make([]Symbol, len(cells))
	copy(copied, cells)
	return Grid{rows: rows, columns: columns, cells: copied}, nil
}

// Rows returns the row count.
func (grid Grid) Rows() int {
	return grid.rows
}

// Columns returns the column count.
func (grid Grid) Columns() int {
	return grid.columns
}

// At returns the symbol at the given cell.
func (grid Grid) At(row int, column int) Symbol {
	return grid.cells[row*grid.columns+column]
}

// OutcomeKind classifies an evaluated spin.
type OutcomeKind string

const (
	OutcomeBonus    OutcomeKind = "bonus"
	OutcomeRowMatch OutcomeKind = "row_match"
	OutcomeNoMatch  OutcomeKind = "no_match"
)

// String returns the wire form of the classification.
func (kind OutcomeKind) String() string {
	return string(kind)
}

// Outcome is the result of evaluating one grid: a non-negative prize and its
// classification. MatchedRows is zero unless the kind is OutcomeRowMatch.
type Outcome struct {
	Kind        OutcomeKind
	Prize       int64
	MatchedRows int
}
