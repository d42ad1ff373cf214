package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/adamspd/DesignQuizBot/quiz"
	"github.com/adamspd/DesignQuizBot/utils"
)

type StatsHandlers struct {
	stats StatsSource
}

func NewStatsHandlers(stats StatsSource) *StatsHandlers {
	return &StatsHandlers{stats: stats}
}

// HandleUserStats serves GET /users/{id}/stats.
func (sh *StatsHandlers) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.LogHTTP("Method %s not allowed for %s", r.Method, r.URL.Path)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "stats" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		utils.LogHTTP("Invalid user ID: %s", parts[0])
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	stats, err := sh.stats.Stats(r.Context(), userID)
	if err != nil {
		if errors.Is(err, quiz.ErrUnknownUser) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		utils.LogError("Failed to fetch stats for user %d: %v", userID, err)
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
