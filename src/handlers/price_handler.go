package handlers

import (
	"net/http"
	"strings"

	"github.com/username/optifolio/src/logger"
	"github.com/username/optifolio/src/services"
	"github.com/username/optifolio/src/utils"
)

type PriceHandler struct {
	priceService services.PriceService
}

func NewPriceHandler(priceService services.PriceService) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
	}
}

// HandleGetPrices proxies live option quotes for one venue. Instruments are
// passed comma-separated: /api/prices/deribit?instruments=BTC-27DEC24-100000-C.
func (h *PriceHandler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	scope, ok := GetScopeFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	venue := r.PathValue("venue")
	raw := r.URL.Query().Get("instruments")
	if raw == "" {
		utils.SendJSONError(w, "instruments query parameter is required", http.StatusBadRequest)
		return
	}
	instruments := make([]string, 0)
	for _, instrument := range strings.Split(raw, ",") {
		if instrument = strings.TrimSpace(instrument); instrument != "" {
			instruments = append(instruments, instrument)
		}
	}

	prices, err := h.priceService.GetOptionPrices(venue, instruments)
	if err != nil {
		logger.L.Warn("Price lookup failed", "clientName", scope.ClientName, "venue", venue, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Quotes are cached server-side for a short TTL; let clients hold them
	// for the same window.
	w.Header().Set("Cache-Control", "private, max-age=15")
	utils.SendJSON(w, prices, http.StatusOK)
}
