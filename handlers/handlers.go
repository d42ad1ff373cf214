package handlers

import (
	"context"
	"net/http"

	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
	"golang.org/x/time/rate"
)

// StatsSource reads a user's progress summary.
type StatsSource interface {
	Stats(ctx context.Context, userID int64) (models.Stats, error)
}

// CatalogReloader replaces the question pool from its source.
type CatalogReloader interface {
	Load(ctx context.Context) (*models.ImportResult, error)
}

// API wrapper to hold all handlers
type API struct {
	statsHandlers   *StatsHandlers
	catalogHandlers *CatalogHandlers
}

func NewAPI(stats StatsSource, catalog CatalogReloader) *API {
	return &API{
		statsHandlers:   NewStatsHandlers(stats),
		catalogHandlers: NewCatalogHandlers(catalog),
	}
}

// NewRouter builds the ops API. Every route except /health requires a bearer
// token matching tokenHash; an empty hash locks those routes.
func NewRouter(stats StatsSource, catalog CatalogReloader, tokenHash string) http.Handler {
	api := NewAPI(stats, catalog)
	requireToken := tokenMiddleware(tokenHash)
	limit := rateLimitMiddleware(rate.Limit(5), 10)

	mux := http.NewServeMux()

	// Health check (no auth required)
	mux.HandleFunc("/health", healthCheck)

	mux.HandleFunc("/catalog/reload", limit(requireToken(api.catalogHandlers.HandleReload)))
	mux.HandleFunc("/users/", limit(requireToken(api.statsHandlers.HandleUserStats)))

	return loggingMiddleware(mux)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	utils.LogDebug("Health check requested")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
