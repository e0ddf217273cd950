package handlers

import (
	"errors"
	"net/http"

	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/services"
	"github.com/username/optifolio/src/utils"
)

type ProgramHandler struct {
	catalogService *services.CatalogService
}

func NewProgramHandler(catalogService *services.CatalogService) *ProgramHandler {
	return &ProgramHandler{
		catalogService: catalogService,
	}
}

func (h *ProgramHandler) HandleListPrograms(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	programs, err := h.catalogService.ListPrograms(scope)
	if err != nil {
		logger.L.Error("Error listing programs", "clientName", scope.ClientName, "error", err)
		utils.SendJSONError(w, "Error retrieving programs", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, programs, http.StatusOK)
}

func (h *ProgramHandler) HandleGetProgram(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	detail, err := h.catalogService.GetProgramDetail(scope, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.L.Error("Error loading program detail", "clientName", scope.ClientName, "error", err)
		utils.SendJSONError(w, "Error retrieving program", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, detail, http.StatusOK)
}
