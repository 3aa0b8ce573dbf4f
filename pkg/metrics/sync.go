package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics tracks per-item outcomes of the synchronization flows.
type SyncMetrics struct {
	itemsUpdated *prometheus.CounterVec
	itemsFailed  *prometheus.CounterVec
	documents    *prometheus.CounterVec
}

// NewSyncMetrics registers the sync counters on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	itemsUpdated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_items_updated_total",
		Help: "Catalog items successfully pushed during reconciliation.",
	}, []string{"sync_type"})
	itemsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_items_failed_total",
		Help: "Catalog items that failed during reconciliation.",
	}, []string{"sync_type"})
	documents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_documents_total",
		Help: "Sales documents submitted to the ERP by result.",
	}, []string{"result"})
	reg.MustRegister(itemsUpdated, itemsFailed, documents)
	return &SyncMetrics{
		itemsUpdated: itemsUpdated,
		itemsFailed:  itemsFailed,
		documents:    documents,
	}
}

// AddUpdated adds successfully pushed item counts for a sync type.
func (s *SyncMetrics) AddUpdated(syncType string, n int) {
	if s == nil || s.itemsUpdated == nil || n <= 0 {
		return
	}
	s.itemsUpdated.WithLabelValues(normalizeLabel(syncType)).Add(float64(n))
}

// AddFailed adds failed item counts for a sync type.
func (s *SyncMetrics) AddFailed(syncType string, n int) {
	if s == nil || s.itemsFailed == nil || n <= 0 {
		return
	}
	s.itemsFailed.WithLabelValues(normalizeLabel(syncType)).Add(float64(n))
}

// IncDocument counts one sales-document submission by result label.
func (s *SyncMetrics) IncDocument(result string) {
	if s == nil || s.documents == nil {
		return
	}
	s.documents.WithLabelValues(normalizeLabel(result)).Inc()
}
