package spin

import "errors"

// Configuration-time error values raised while building an Engine or Grid.
// None of these can occur per spin; an Engine that constructed successfully
// never fails.
var (
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidCatalog    = errors.New("invalid symbol catalog")
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
	ErrInvalidPrize      = errors.New("invalid prize amount")
	ErrInvalidGrid       = errors.New("invalid grid")
	ErrInvalidRand       = errors.New("invalid randomness source")
)
