package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventdeck"

// Registry holds every eventdeck metric; /metrics serves it.
var Registry = prometheus.NewRegistry()

var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Domain metrics
var (
	// EventMutations counts event writes by operation and outcome
	// (success, not_found, invalid, forbidden, conflict, error).
	EventMutations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_mutations_total",
			Help:      "Total number of event mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// EventVersionConflicts counts compare-and-swap misses, including ones
	// that succeeded on retry.
	EventVersionConflicts = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_version_conflicts_total",
			Help:      "Total number of version-checked writes that lost a race",
		},
	)

	ModuleAttachments = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_attachments_total",
			Help:      "Total number of module attachment changes by module and action",
		},
		[]string{"module", "action"},
	)

	CatalogModules = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_modules",
			Help:      "Number of module definitions in the catalog",
		},
		[]string{"category", "active"},
	)
)

var initOnce sync.Once

// Init registers runtime collectors and records build information. Safe to
// call more than once.
func Init(version, commit, buildDate string) {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

func RecordMutation(operation, outcome string) {
	EventMutations.WithLabelValues(operation, outcome).Inc()
}

func RecordVersionConflict() {
	EventVersionConflicts.Inc()
}

func RecordModuleAttachment(module, action string) {
	ModuleAttachments.WithLabelValues(module, action).Inc()
}

// SetCatalogModules records how many definitions share a category and
// active flag.
func SetCatalogModules(category string, active bool, count int) {
	CatalogModules.WithLabelValues(category, strconv.FormatBool(active)).Set(float64(count))
}
