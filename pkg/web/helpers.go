package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RespondJSON writes payload as JSON with the given status. A nil payload writes the status only.
func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// RespondError writes {"error": message}.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// RespondValidationErrors writes a 400 with {"validation_errors": {field: reason}}.
func RespondValidationErrors(w http.ResponseWriter, logger *slog.Logger, fields map[string]string) {
	RespondJSON(w, logger, http.StatusBadRequest, map[string]any{"validation_errors": fields})
}

// DecodeJSON decodes the request body into dst, rejecting unknown trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
