package playapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/spin"
)

const (
	defaultListenAddr    = ":9090"
	defaultAllowedOrigin = "http://localhost:8000"
	defaultSessionIssuer = "slotbank"
	defaultSessionCookie = "app_session"

	gridRows    = 3
	gridColumns = 5

	spinCostCoins        int64 = 10
	rowPrizeCoins        int64 = 50
	bonusPrizeCoins      int64 = 100
	startingBalanceCoins int64 = 100

	bonusAssetName = "robu"
)

// reelGlyphs are the regular reel faces; the bonus symbol is drawn from the
// same catalog but rendered as an image asset on the client.
var reelGlyphs = []string{"🍎", "🍊", "🍋", "🔔", "⭐", "💎"}

// Config aggregates runtime settings for the play API.
type Config struct {
	ListenAddr        string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
	SpinTimeout       time.Duration
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if cfg.SpinTimeout <= 0 {
		cfg.SpinTimeout = 3 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

// SpinCostCoins returns the price of one spin.
func SpinCostCoins() int64 {
	return spinCostCoins
}

// StartingBalanceCoins returns the balance granted to new players.
func StartingBalanceCoins() int64 {
	return startingBalanceCoins
}

// DefaultCatalog builds the production reel catalog: six glyph faces plus the
// image-backed bonus symbol.
func DefaultCatalog() ([]spin.Symbol, error) {
	catalog := make([]spin.Symbol, 0, len(reelGlyphs)+1)
	for _, glyph := range reelGlyphs {
		symbol, err := spin.NewGlyphSymbol(glyph)
		if err != nil {
			return nil, err
		}
		catalog = append(catalog, symbol)
	}
	bonus, err := spin.NewBonusSymbol(bonusAssetName)
	if err != nil {
		return nil, err
	}
	catalog = append(catalog, bonus)
	return catalog, nil
}

// DefaultRules returns the production reel geometry and prize schedule.
func DefaultRules() (spin.Rules, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return spin.Rules{}, err
	}
	return spin.Rules{
		Catalog:    catalog,
		Rows:       gridRows,
		Columns:    gridColumns,
		RowPrize:   rowPrizeCoins,
		BonusPrize: bonusPrizeCoins,
	}, nil
}
