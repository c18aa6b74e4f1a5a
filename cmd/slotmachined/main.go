package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/slotbank/internal/playapi"
	"github.com/MarkoPoloResearchLab/slotbank/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/slotbank/internal/store/memstore"
	"github.com/MarkoPoloResearchLab/slotbank/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/slotbank/pkg/spin"
	"github.com/MarkoPoloResearchLab/slotbank/pkg/wallet"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagAllowedOrigins = "allowed-origins"
	flagJWTSigningKey  = "jwt-signing-key"
	flagJWTIssuer      = "jwt-issuer"
	flagJWTCookieName  = "jwt-cookie-name"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyJWTSigningKey  = "jwt_signing_key"
	configKeyJWTIssuer      = "jwt_issuer"
	configKeyJWTCookieName  = "jwt_cookie_name"

	defaultDatabaseURL = "sqlite:///tmp/slotbank.db"
	defaultListenAddr  = ":9090"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins string
	JWTSigningKey  string
	JWTIssuer      string
	JWTCookieName  string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "slotmachined: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "slotmachined",
		Short:         "Slot machine wallet and play API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string (postgres://, sqlite:// or memory://)")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma separated CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "HS256 key validating session cookies")
	cmd.Flags().String(flagJWTIssuer, "", "expected session token issuer")
	cmd.Flags().String(flagJWTCookieName, "", "session cookie name")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
		configKeyJWTSigningKey:  "JWT_SIGNING_KEY",
		configKeyJWTIssuer:      "JWT_ISSUER",
		configKeyJWTCookieName:  "JWT_COOKIE_NAME",
	}
	for configKey, envName := range bindings {
		if err := viper.BindEnv(configKey, envName); err != nil {
			return err
		}
	}

	flags := map[string]string{
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeyAllowedOrigins: flagAllowedOrigins,
		configKeyJWTSigningKey:  flagJWTSigningKey,
		configKeyJWTIssuer:      flagJWTIssuer,
		configKeyJWTCookieName:  flagJWTCookieName,
	}
	for configKey, flagName := range flags {
		if err := viper.BindPFlag(configKey, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.JWTSigningKey = viper.GetString(configKeyJWTSigningKey)
	cfg.JWTIssuer = viper.GetString(configKeyJWTIssuer)
	cfg.JWTCookieName = viper.GetString(configKeyJWTCookieName)

	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer func() { _ = cleanup() }()

	rules, err := playapi.DefaultRules()
	if err != nil {
		return fmt.Errorf("spin rules: %w", err)
	}
	engine, err := spin.NewEngine(rules)
	if err != nil {
		return fmt.Errorf("spin engine init: %w", err)
	}

	starting, err := wallet.NewCoins(playapi.StartingBalanceCoins())
	if err != nil {
		return fmt.Errorf("starting balance: %w", err)
	}
	walletService, err := wallet.NewService(
		store,
		engine,
		wallet.Config{StartingBalance: starting},
		wallet.WithOperationLogger(playapi.NewZapOperationLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("wallet service init: %w", err)
	}

	apiConfig := playapi.Config{
		ListenAddr:        cfg.ListenAddr,
		AllowedOrigins:    playapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		SessionSigningKey: cfg.JWTSigningKey,
		SessionIssuer:     cfg.JWTIssuer,
		SessionCookieName: cfg.JWTCookieName,
	}

	return playapi.Run(ctx, apiConfig, walletService, logger)
}

// openStore resolves the DSN scheme into a wallet.Store. postgres:// uses a
// pgx pool directly; postgres+gorm:// and sqlite:// go through gorm with
// auto-migration; memory:// keeps balances in process.
func openStore(ctx context.Context, dsn string) (wallet.Store, func() error, error) {
	switch {
	case strings.HasPrefix(dsn, "memory://"):
		return memstore.New(), func() error { return nil }, nil
	case strings.HasPrefix(dsn, "postgres+gorm://"):
		return openGormStore(ctx, postgres.Open("postgres://"+strings.TrimPrefix(dsn, "postgres+gorm://")), true)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return openPgxStore(ctx, dsn)
	default:
		sqlitePath, err := resolveSQLitePath(dsn)
		if err != nil {
			return nil, nil, err
		}
		return openGormStore(ctx, sqlite.Open(sqlitePath), true)
	}
}

func openPgxStore(ctx context.Context, dsn string) (wallet.Store, func() error, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	store := pgstore.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	cleanup := func() error {
		pool.Close()
		return nil
	}
	return store, cleanup, nil
}

func openGormStore(ctx context.Context, dialector gorm.Dialector, migrate bool) (wallet.Store, func() error, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	store := gormstore.New(db.WithContext(ctx))
	if migrate {
		if err := store.Migrate(); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
	}
	return store, func() error { return sqlDB.Close() }, nil
}

func resolveSQLitePath(dsn string) (string, error) {
	path := dsn
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path = parsed.Path
		if path == "" {
			path = parsed.Host
		}
	}
	if path == "" || path == "/" {
		path = "slotbank.db"
	}
	return normalizeSQLitePath(path)
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
