package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// encodeFailure is written when a response cannot be encoded.
var encodeFailure = []byte(`{"status":"error","message":"Internal server error"}` + "\n")

// respond writes resp as JSON with the given status code.
func respond(w http.ResponseWriter, r *http.Request, statusCode int, resp models.APIResponse) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		slog.Error("Server.respond: failed to encode response", "request_id", chimw.GetReqID(r.Context()), "error", err)
		buf.Reset()
		buf.Write(encodeFailure)
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Server.respond: client went away", "request_id", chimw.GetReqID(r.Context()), "error", err)
	}
}

// respondError writes an error response carrying message.
func respondError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	respond(w, r, statusCode, models.Error(message))
}
