// Package handlers implements the HTTP and WebSocket endpoints.
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/triagekit/triagekit/pkg/coordinator"
	"github.com/triagekit/triagekit/pkg/notify"
)

// API bundles the dependencies the endpoint handlers share.
type API struct {
	Coordinator *coordinator.Coordinator
	DB          *sql.DB
	Hub         *notify.Hub
	Log         *zap.Logger
}

// NewAPI builds the handler set.
func NewAPI(coord *coordinator.Coordinator, db *sql.DB, hub *notify.Hub, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{Coordinator: coord, DB: db, Hub: hub, Log: log}
}

// writeJSON writes v with the given status. Encoding failures are logged,
// not surfaced; headers are already on the wire.
func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Log.Error("encode response", zap.Error(err))
	}
}
