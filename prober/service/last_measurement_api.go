package service

import (
	"encoding/json"
	"net/http"
)

func (api *APIServer) LastMeasurementHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	record, ok := api.last.Last()
	if !ok {
		http.Error(w, "No measurement yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(record); err != nil {
		// Can't send error response after WriteHeader, just log it
		api.logger.Error("Error encoding measurement to JSON", "error", err)
	}
}
