package http

import (
	"context"
	"net/http"

	"github.com/photos-network/photos-sync/internal/client/photosync"
)

// SyncRunner defines the operations required by SyncHandler.
type SyncRunner interface {
	Run(ctx context.Context) photosync.Result
	LastResult() *photosync.Result
}

// SyncHandler serves /api/sync.
type SyncHandler struct {
	Sync SyncRunner
}

// Run handles POST /api/sync. It runs one reconciliation and reports its
// outcome; a failed run answers 500, a skipped one 409.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	res := h.Sync.Run(r.Context())
	status := http.StatusOK
	switch res.Outcome {
	case photosync.SyncFailed:
		status = http.StatusInternalServerError
	case photosync.SyncSkipped:
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

// Last handles GET /api/sync.
func (h *SyncHandler) Last(w http.ResponseWriter, r *http.Request) {
	last := h.Sync.LastResult()
	if last == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, last)
}
