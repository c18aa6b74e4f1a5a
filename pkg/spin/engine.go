package spin

import "fmt"

// Rand supplies uniform random integers. *math/rand/v2.Rand satisfies it;
// tests inject scripted sequences for deterministic grids.
type Rand interface {
	IntN(n int) int
}

// Rules fixes the symbol catalog, grid shape, and prize schedule at startup.
type Rules struct {
	Catalog    []Symbol
	Rows       int
	Columns    int
	RowPrize   int64
	BonusPrize int64
}

// Engine draws and evaluates grids. It holds no mutable state and is safe for
// concurrent use across all users.
type Engine struct {
	rules Rules
}

// NewEngine validates the rules and builds an engine. Invalid rules are a
// startup configuration error; a constructed engine has no failure modes.
func NewEngine(rules Rules) (*Engine, error) {
	if len(rules.Catalog) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidCatalog)
	}
	for _, symbol := range rules.Catalog {
		if symbol.kind == 0 {
			return nil, fmt.Errorf("%w: zero-value symbol in catalog", ErrInvalidCatalog)
		}
	}
	if rules.Rows < 1 {
		return nil, fmt.Errorf("%w: rows must be at least 1, got %d", ErrInvalidDimensions, rules.Rows)
	}
	// A single-column row trivially always matches, so the shape is rejected
	// here rather than producing a degenerate payout per spin.
	if rules.Columns < 2 {
		return nil, fmt.Errorf("%w: columns must be at least 2, got %d", ErrInvalidDimensions, rules.Columns)
	}
	if rules.RowPrize < 0 {
		return nil, fmt.Errorf("%w: row prize %d", ErrInvalidPrize, rules.RowPrize)
	}
	if rules.BonusPrize < 0 {
		return nil, fmt.Errorf("%w: bonus prize %d", ErrInvalidPrize, rules.BonusPrize)
	}
	copied := rules
	copied.Catalog = make([]Symbol, len(rules.Catalog))
	copy(copied.Catalog, rules.Catalog)
	return &Engine{rules: copied}, nil
}

// Rules returns a copy of the engine's rules.
func (engine *Engine) Rules() Rules {
	copied := engine.rules
	copied.Catalog = make([]Symbol, len(engine.rules.Catalog))
	copy(copied.Catalog, engine.rules.Catalog)
	return copied
}

// DrawGrid fills every cell independently and uniformly from the catalog
// using the injected randomness source.
func (engine *Engine) DrawGrid(rng Rand) Grid {
	cells := make([]Symbol, engine.rules.Rows*engine.rules.Columns)
	for index := range cells {
		cells[index] = engine.rules.Catalog[rng.IntN(len(engine.rules.Catalog))]
	}
	return Grid{rows: engine.rules.Rows, columns: engine.rules.Columns, cells: cells}
}

// Evaluate scores a grid. A bonus symbol anywhere wins the bonus prize and
// suppresses row scoring; otherwise every fully-uniform row adds the row
// prize, and a grid with neither is a no-match.
func (engine *Engine) Evaluate(grid Grid) Outcome {
	for _, cell := range grid.cells {
		if cell.IsBonus() {
			return Outcome{Kind: OutcomeBonus, Prize: engine.rules.BonusPrize}
		}
	}
	matchedRows := 0
	for row := 0; row < grid.rows; row++ {
		first := grid.At(row, 0)
		uniform := true
		for column := 1; column < grid.columns; column++ {
			if !grid.At(row, column).equals(first) {
				uniform = false
				break
			}
		}
		if uniform {
			matchedRows++
		}
	}
	if matchedRows > 0 {
		return Outcome{
			Kind:        OutcomeRowMatch,
			Prize:       int64(matchedRows) * engine.rules.RowPrize,
			MatchedRows: matchedRows,
		}
	}
	return Outcome{Kind: OutcomeNoMatch}
}
