package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adamspd/DesignQuizBot/catalog"
	"github.com/adamspd/DesignQuizBot/models"
	"github.com/adamspd/DesignQuizBot/utils"
)

type CatalogHandlers struct {
	loader CatalogReloader
}

func NewCatalogHandlers(loader CatalogReloader) *CatalogHandlers {
	return &CatalogHandlers{loader: loader}
}

// HandleReload serves POST /catalog/reload. A load that finds nothing keeps
// the current pool and answers 422 with the diagnostics.
func (ch *CatalogHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.LogHTTP("Method %s not allowed for /catalog/reload", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := ch.loader.Load(r.Context())
	if result == nil {
		result = &models.ImportResult{}
	}

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrEmptyCatalog):
		status = http.StatusUnprocessableEntity
		result.Errors = append(result.Errors, err.Error())
	default:
		utils.LogError("Catalog reload failed: %v", err)
		http.Error(w, "Catalog reload failed", http.StatusInternalServerError)
		return
	}

	utils.LogHTTP("Catalog reload: %d imported, %d skipped", result.ImportedQuestions, result.SkippedQuestions)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}
