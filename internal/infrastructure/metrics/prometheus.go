package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ inventory.Recorder = (*LedgerRecorder)(nil)

// LedgerRecorder métricas del coordinador en un registro propio (no el global).
type LedgerRecorder struct {
	registry  *prometheus.Registry
	documents *prometheus.CounterVec
	lines     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewLedgerRecorder registra los colectores bajo el namespace dado.
func NewLedgerRecorder(namespace string) *LedgerRecorder {
	registry := prometheus.NewRegistry()
	r := &LedgerRecorder{
		registry: registry,
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "documents_total",
			Help:      "Documentos procesados por el libro, por operación, origen y resultado.",
		}, []string{"operation", "source", "outcome"}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "lines_total",
			Help:      "Líneas de documentos confirmados.",
		}, []string{"operation", "source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "document_duration_seconds",
			Help:      "Duración de la transacción de un documento.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
	}
	registry.MustRegister(
		r.documents, r.lines, r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveDocument implementa inventory.Recorder.
func (r *LedgerRecorder) ObserveDocument(operation string, source entity.Source, lines int, err error, elapsed time.Duration) {
	r.documents.WithLabelValues(operation, string(source), Outcome(err)).Inc()
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err == nil {
		r.lines.WithLabelValues(operation, string(source)).Add(float64(lines))
	}
}

// Handler expone el registro en formato Prometheus.
func (r *LedgerRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Outcome etiqueta de baja cardinalidad para un error del libro.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrDuplicateReference):
		return "duplicate"
	case errors.Is(err, domain.ErrInvalidInput):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
