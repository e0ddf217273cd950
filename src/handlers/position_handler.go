package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/optifolio/src/config"
	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/models"
	"github.com/username/optifolio/src/parsers"
	"github.com/username/optifolio/src/processors"
	"github.com/username/optifolio/src/services"
	"github.com/username/optifolio/src/utils"
)

type PositionHandler struct {
	structureService *services.StructureService
	linkService      *services.LinkService
	backfillService  *services.BackfillService
}

func NewPositionHandler(structureService *services.StructureService, linkService *services.LinkService, backfillService *services.BackfillService) *PositionHandler {
	return &PositionHandler{
		structureService: structureService,
		linkService:      linkService,
		backfillService:  backfillService,
	}
}

// HandleListPositions returns the caller's open positions with legs and
// summary labels, with ETag support for cheap polling.
func (h *PositionHandler) HandleListPositions(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	views, err := h.structureService.ListPositions(scope)
	if err != nil {
		logger.L.Error("Error listing positions", "clientName", scope.ClientName, "error", err)
		utils.SendJSONError(w, "Error retrieving positions", http.StatusInternalServerError)
		return
	}
	if views == nil {
		views = []services.PositionView{}
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	currentETag, etagErr := utils.GenerateETag(views)
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	utils.SendJSON(w, views, http.StatusOK)
}

// HandleGetPosition returns one position with legs and summary.
func (h *PositionHandler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	view, err := h.structureService.GetPosition(scope, r.PathValue("id"))
	if err != nil {
		h.sendServiceError(w, scope, err)
		return
	}
	utils.SendJSON(w, view, http.StatusOK)
}

// HandleAppendLegs attaches a JSON array of normalized trades to the
// position in the path.
func (h *PositionHandler) HandleAppendLegs(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	positionID := r.PathValue("id")

	var trades []models.NormalizedTrade
	if err := json.NewDecoder(r.Body).Decode(&trades); err != nil {
		utils.SendJSONError(w, "Invalid request body: expected an array of trades", http.StatusBadRequest)
		return
	}

	appended, err := h.structureService.AppendLegs(scope, positionID, trades)
	if err != nil {
		h.sendServiceError(w, scope, err)
		return
	}
	utils.SendJSON(w, map[string]int{"legs_appended": appended}, http.StatusOK)
}

// HandleArchivePosition soft-deletes a position.
func (h *PositionHandler) HandleArchivePosition(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if err := h.structureService.ArchivePosition(scope, r.PathValue("id"), scope.ClientName); err != nil {
		h.sendServiceError(w, scope, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSyncLinks replaces the position's linked set, mirroring the change
// on every affected position.
func (h *PositionHandler) HandleSyncLinks(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var body struct {
		LinkedIDs []string `json:"linked_ids"`
		ClosedAt  string   `json:"closed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.linkService.SyncLinkedPositions(scope, r.PathValue("id"), body.LinkedIDs, body.ClosedAt); err != nil {
		h.sendServiceError(w, scope, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBackfillExpiries re-reads an export file and writes resolved
// expiries onto legs matched through their fills.
func (h *PositionHandler) HandleBackfillExpiries(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Failed to parse form or request too large", http.StatusBadRequest)
		return
	}
	exchange := r.FormValue("exchange")
	if exchange == "" {
		utils.SendJSONError(w, "exchange form field is required (deribit or coincall)", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	parser, err := parsers.GetParser(exchange)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := parser.Parse(file)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error parsing export file: %v", err), http.StatusBadRequest)
		return
	}

	updated, skipped, err := h.backfillService.BackfillExpiries(rows)
	if err != nil {
		h.sendServiceError(w, scope, err)
		return
	}
	utils.SendJSON(w, map[string]int{"updated": updated, "skipped": skipped}, http.StatusOK)
}

func (h *PositionHandler) sendServiceError(w http.ResponseWriter, scope models.ClientScope, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrConflict):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, processors.ErrValidation):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.L.Error("position operation failed", "clientName", scope.ClientName, "error", err)
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
	}
}
