package controllers

import (
	"context"
	"net/http"

	"github.com/crmbridge/crmbridge-backend/api/responses"
	"github.com/crmbridge/crmbridge-backend/internal/reconciler"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
)

// StockReconciler runs one stock reconciliation pass.
type StockReconciler interface {
	Reconcile(ctx context.Context) (*reconciler.Summary, error)
}

// TriggerStockSync runs a stock reconciliation on demand, outside the daily
// schedule. The run is synchronous; the response carries the summary.
func TriggerStockSync(svc StockReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		summary, err := svc.Reconcile(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
