package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crmbridge/crmbridge-backend/api/controllers"
	"github.com/crmbridge/crmbridge-backend/api/controllers/webhooks"
	"github.com/crmbridge/crmbridge-backend/api/middleware"
	"github.com/crmbridge/crmbridge-backend/internal/audit"
	"github.com/crmbridge/crmbridge-backend/internal/mappings"
	"github.com/crmbridge/crmbridge-backend/pkg/config"
	"github.com/crmbridge/crmbridge-backend/pkg/logger"
	"github.com/crmbridge/crmbridge-backend/pkg/notify"
)

// Deps carries everything the HTTP surface needs. Nil optional members
// (pingers, metrics registry, report generator, notifier) disable the
// matching endpoint or check.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	Pingers map[string]controllers.Pinger

	DealQueue  webhooks.Enqueuer
	Mappings   mappings.Service
	Audit      audit.Service
	Reconciler controllers.StockReconciler
	Reports    controllers.ReportGenerator
	Notifier   notify.Notifier

	MetricsRegistry *prometheus.Registry
}

// New assembles the HTTP router.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/health/live", controllers.HealthLive(deps.Config))
	r.Get("/health/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.Pingers))

	if deps.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Post("/webhooks/crm/deal", webhooks.DealEvent(deps.DealQueue, deps.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/mappings", controllers.RegisterMapping(deps.Mappings, deps.Logger))
		r.Get("/mappings", controllers.ListMappings(deps.Mappings, deps.Logger))

		r.Post("/sync/stock", controllers.TriggerStockSync(deps.Reconciler, deps.Logger))
		r.Get("/sync/log", controllers.ListSyncLog(deps.Audit, deps.Logger))

		r.Post("/reports", controllers.GenerateReport(deps.Audit, deps.Reports, deps.Notifier, deps.Logger))
	})

	return r
}
