package handlers

import (
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/triagekit/triagekit/internal/errors"
	"github.com/triagekit/triagekit/pkg/bugstore"
)

// ListBugs handles GET /bugs: every recorded bug, newest first.
func (a *API) ListBugs(w http.ResponseWriter, r *http.Request) {
	bugs, err := bugstore.ListBugs(r.Context(), a.DB)
	if err != nil {
		a.Log.Error("list bugs", zap.Error(err))
		apperrors.WriteError(w, r, apperrors.CodeInternal, "could not list bugs", nil)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{"bugs": bugs})
}
