package playapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/slotbank/pkg/spin"
	"github.com/MarkoPoloResearchLab/slotbank/pkg/wallet"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	messageBonusWin         = "🎉 ROBU BONUS! You won $%d!"
	messageRowWin           = "✨ Row match! You won $%d!"
	messageNoMatch          = "No match. Try again!"
	messageInsufficientFund = "Not enough money! Game Over!"
)

// systemRand adapts the shared top-level math/rand/v2 generator, which is
// safe for concurrent use, to the spin.Rand interface.
type systemRand struct{}

func (systemRand) IntN(n int) int {
	return rand.IntN(n)
}

// Run boots the HTTP play API and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config, walletService *wallet.Service, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("playapi config: %w", err)
	}

	handler := &httpHandler{
		logger:        logger,
		walletService: walletService,
		cfg:           cfg,
		rng:           systemRand{},
	}

	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("playapi listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(sessionMiddleware(cfg))

	api.GET("/session", handler.handleSession)
	api.POST("/bootstrap", handler.handleBootstrap)
	api.GET("/wallet", handler.handleWallet)
	api.POST("/spin", handler.handleSpin)
	api.POST("/reset", handler.handleReset)

	return router
}

type httpHandler struct {
	logger        *zap.Logger
	walletService *wallet.Service
	cfg           Config
	rng           spin.Rand
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	response := gin.H{
		"user_id": claims.Subject,
		"email":   claims.Email,
	}
	if claims.ExpiresAt != nil {
		response["expires"] = claims.ExpiresAt.Unix()
	}
	ctx.JSON(http.StatusOK, response)
}

func (handler *httpHandler) handleBootstrap(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := wallet.NewUserID(claims.Subject)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_user", "bad user id"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.SpinTimeout)
	defer cancel()

	balance, err := handler.walletService.Balance(requestCtx, userID)
	if err != nil {
		handler.logger.Error("bootstrap failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("wallet_error", "wallet unavailable"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": balance.Int64()})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := wallet.NewUserID(claims.Subject)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_user", "bad user id"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.SpinTimeout)
	defer cancel()

	balance, err := handler.walletService.Balance(requestCtx, userID)
	if err != nil {
		handler.logger.Error("wallet fetch failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("wallet_error", "wallet unavailable"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": balance.Int64()})
}

func (handler *httpHandler) handleSpin(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := wallet.NewUserID(claims.Subject)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_user", "bad user id"))
		return
	}
	cost, err := wallet.NewCoins(SpinCostCoins())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("config_error", "bad spin cost"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.SpinTimeout)
	defer cancel()

	receipt, err := handler.walletService.PlaceSpin(requestCtx, userID, cost, handler.rng)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInsufficientFunds):
			handler.respondInsufficientFunds(ctx, userID)
		case errors.Is(err, wallet.ErrSpinUnsettled):
			handler.logger.Error("spin left unsettled", zap.Error(err))
			ctx.JSON(http.StatusBadGateway, errorResponse("spin_unsettled", "prize credit is unresolved"))
		default:
			handler.logger.Error("spin failed", zap.Error(err))
			ctx.JSON(http.StatusBadGateway, errorResponse("wallet_error", "spin failed"))
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"spin_id":      receipt.SpinID,
		"grid":         gridPayload(receipt.Grid),
		"outcome":      receipt.Outcome.Kind.String(),
		"prize":        receipt.Outcome.Prize,
		"matched_rows": receipt.Outcome.MatchedRows,
		"message":      outcomeMessage(receipt.Outcome),
		"balance":      receipt.Balance.Int64(),
	})
}

func (handler *httpHandler) handleReset(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	userID, err := wallet.NewUserID(claims.Subject)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_user", "bad user id"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.SpinTimeout)
	defer cancel()

	balance, err := handler.walletService.Reset(requestCtx, userID)
	if err != nil {
		handler.logger.Error("reset failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("wallet_error", "reset failed"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": balance.Int64()})
}

func (handler *httpHandler) respondInsufficientFunds(ctx *gin.Context, userID wallet.UserID) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.SpinTimeout)
	defer cancel()

	balance, err := handler.walletService.Balance(requestCtx, userID)
	if err != nil {
		handler.logger.Error("wallet fetch failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse("wallet_error", "wallet unavailable"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "insufficient_funds",
		"message": messageInsufficientFund,
		"balance": balance.Int64(),
	})
}

type cellPayload struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

func gridPayload(grid spin.Grid) [][]cellPayload {
	rows := make([][]cellPayload, grid.Rows())
	for row := 0; row < grid.Rows(); row++ {
		cells := make([]cellPayload, grid.Columns())
		for column := 0; column < grid.Columns(); column++ {
			symbol := grid.At(row, column)
			kind := "glyph"
			if symbol.IsBonus() {
				kind = "bonus"
			}
			cells[column] = cellPayload{Kind: kind, Key: symbol.Key()}
		}
		rows[row] = cells
	}
	return rows
}

func outcomeMessage(outcome spin.Outcome) string {
	switch outcome.Kind {
	case spin.OutcomeBonus:
		return fmt.Sprintf(messageBonusWin, outcome.Prize)
	case spin.OutcomeRowMatch:
		return fmt.Sprintf(messageRowWin, outcome.Prize)
	default:
		return messageNoMatch
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
