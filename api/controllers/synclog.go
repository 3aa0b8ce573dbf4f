package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/crmbridge/crmbridge-backend/api/responses"
	"github.com/crmbridge/crmbridge-backend/api/validators"
	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/pkg/db/models"
	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

type syncLogEntryResponse struct {
	ID           int64     `json:"id"`
	SyncType     string    `json:"sync_type"`
	Direction    string    `json:"direction"`
	Status       string    `json:"status"`
	EntityID     *string   `json:"entity_id,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSyncLogResponse(e models.SyncLogEntry) syncLogEntryResponse {
	return syncLogEntryResponse{
		ID:           e.ID,
		SyncType:     e.SyncType,
		Direction:    e.Direction,
		Status:       e.Status,
		EntityID:     e.EntityID,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    e.CreatedAt,
	}
}

// ListSyncLog pages through the audit trail, newest first. Type and status
// filters are optional.
func ListSyncLog(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		syncType := strings.TrimSpace(r.URL.Query().Get("type"))
		if syncType != "" && syncType != models.SyncTypeOrderToERP && syncType != models.SyncTypeStockToCRM {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown sync type").
				WithDetails(map[string]any{"field": "type"}))
			return
		}

		status := strings.TrimSpace(r.URL.Query().Get("status"))
		switch status {
		case "", models.SyncStatusSuccess, models.SyncStatusPartialSuccess, models.SyncStatusError:
		default:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown sync status").
				WithDetails(map[string]any{"field": "status"}))
			return
		}

		entries, err := svc.List(ctx, audit.ListFilter{
			SyncType: syncType,
			Status:   status,
			EntityID: strings.TrimSpace(r.URL.Query().Get("entity_id")),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]syncLogEntryResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, toSyncLogResponse(entry))
		}
		responses.WriteSuccess(w, out)
	}
}
