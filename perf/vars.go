package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	RoundLatency     = metric.NewHistogram("1m1s")
	DeliveryDelay    = metric.NewHistogram("1m1s")
	RowsPerAdvert    = metric.NewHistogram("10s1s")
	AdvertsPerSecond = metric.NewCounter("10s1s")
	DroppedPackets   = metric.NewCounter("10s1s")
)

func init() {
	expvar.Publish("dsdvsim:RoundLatency (µs)", RoundLatency)
	expvar.Publish("dsdvsim:DeliveryDelay", DeliveryDelay)
	expvar.Publish("dsdvsim:RowsPerAdvert", RowsPerAdvert)
	expvar.Publish("dsdvsim:Adverts/s", AdvertsPerSecond)
	expvar.Publish("dsdvsim:DroppedPackets/s", DroppedPackets)
}

// Handler serves the published metrics, including the expvar ones.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}
