package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/username/optifolio/src/config"
	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/processors"
	"github.com/username/optifolio/src/security/validation"
	"github.com/username/optifolio/src/services"
	"github.com/username/optifolio/src/utils"
)

type UploadHandler struct {
	importService *services.ImportService
}

func NewUploadHandler(importService *services.ImportService) *UploadHandler {
	return &UploadHandler{
		importService: importService,
	}
}

// HandleUpload accepts a multipart export file plus the exchange it came
// from. An optional position_id routes the trades onto an existing
// position; without it they land in the unprocessed queue.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "clientName", scope.ClientName, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	exchange := r.FormValue("exchange")
	if exchange == "" {
		utils.SendJSONError(w, "exchange form field is required (deribit or coincall)", http.StatusBadRequest)
		return
	}
	positionID := r.FormValue("position_id")

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "clientName", scope.ClientName, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "clientName", scope.ClientName, "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "clientName", scope.ClientName, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("Processing upload request",
		"clientName", scope.ClientName, "filename", fileHeader.Filename,
		"exchange", exchange, "detectedType", detectedContentType)

	result, err := h.importService.ProcessUpload(scope, file, exchange, positionID)
	if err != nil {
		switch {
		case errors.Is(err, processors.ErrValidation):
			logger.L.Warn("Upload rejected by validation", "clientName", scope.ClientName, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("File content validation failed: %v", err), http.StatusBadRequest)
		case errors.Is(err, services.ErrParsingFailed):
			logger.L.Warn("Upload parsing failed", "clientName", scope.ClientName, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing export file: %v", err), http.StatusBadRequest)
		case errors.Is(err, services.ErrNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		default:
			logger.L.Error("Internal error processing upload", "clientName", scope.ClientName, "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error encoding JSON response for upload result", "clientName", scope.ClientName, "error", err)
	}
}

// HandleGetLatestImport serves the cached summary of the caller's most
// recent upload.
func (h *UploadHandler) HandleGetLatestImport(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	result, found := h.importService.LatestImportResult(scope)
	if !found {
		utils.SendJSONError(w, "no recent import found", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

// HandleGetUnprocessed lists the caller's reconciliation queue.
func (h *UploadHandler) HandleGetUnprocessed(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	rows, err := h.importService.ListUnprocessed(scope)
	if err != nil {
		logger.L.Error("Error listing unprocessed trades", "clientName", scope.ClientName, "error", err)
		utils.SendJSONError(w, "Error retrieving unprocessed trades", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, rows, http.StatusOK)
}

// HandleImportBundle applies a full JSON bundle: venue, program,
// strategies, one position with legs and fills.
func (h *UploadHandler) HandleImportBundle(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var bundle services.Bundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		utils.SendJSONError(w, "Invalid bundle payload", http.StatusBadRequest)
		return
	}

	pos, err := h.importService.ImportBundle(scope, bundle)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConflict):
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, services.ErrNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		default:
			logger.L.Error("Bundle import failed", "clientName", scope.ClientName, "error", err)
			utils.SendJSONError(w, "An internal error occurred while importing the bundle", http.StatusInternalServerError)
		}
		return
	}

	response := map[string]interface{}{"message": "bundle imported"}
	if pos != nil {
		response["position_id"] = pos.ID
	}
	utils.SendJSON(w, response, http.StatusCreated)
}
