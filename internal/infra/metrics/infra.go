package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(pgPoolConns, catalogCacheTotal, buildInfo) }

var (
	// state: total|idle|acquired
	pgPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pg_pool_connections",
			Help: "Postgres pool connections by state, sampled periodically.",
		},
		[]string{"state"},
	)

	// entity: product|plan|order_bump|settings ; result: hit|miss|error|invalidate
	catalogCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Redis catalog cache lookups and invalidations.",
		},
		[]string{"entity", "result"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pixcheckout_build_info",
			Help: "Always 1; labels carry the running build and its storage/PIX wiring.",
		},
		[]string{"version", "commit", "storage", "pix_provider"},
	)
)

func SetPoolConns(total, idle, acquired int32) {
	pgPoolConns.WithLabelValues("total").Set(float64(total))
	pgPoolConns.WithLabelValues("idle").Set(float64(idle))
	pgPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}

func IncCatalogCache(entity, result string) {
	catalogCacheTotal.WithLabelValues(norm(entity), norm(result)).Inc()
}

func SetBuildInfo(version, commit, storage, pixProvider string) {
	buildInfo.WithLabelValues(version, commit, norm(storage), norm(pixProvider)).Set(1)
}
