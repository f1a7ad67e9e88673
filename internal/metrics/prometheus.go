package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StorageBackend = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "solarscope_storage_backend",
			Help: "Active storage backend (1 for the backend currently serving requests)",
		},
		[]string{"type"},
	)

	StorageFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarscope_storage_fallbacks_total",
			Help: "Durable store failures that were served by the memory store",
		},
		[]string{"op"},
	)

	AnalysesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarscope_analyses_created_total",
			Help: "Analyses persisted, by type and storage backend",
		},
		[]string{"type", "storage"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarscope_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarscope_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(StorageBackend)
		prometheus.MustRegister(StorageFallbacks)
		prometheus.MustRegister(AnalysesCreated)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
	})
}

// SetStorageBackend marks typ as the only active backend.
func SetStorageBackend(typ string) {
	for _, t := range []string{"database", "memory"} {
		v := 0.0
		if t == typ {
			v = 1
		}
		StorageBackend.WithLabelValues(t).Set(v)
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
