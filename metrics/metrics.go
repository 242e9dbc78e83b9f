// Package metrics exposes a small set of prometheus collectors describing
// the health of the embedded daemon and wallet. It is the "PROM" subsystem
// referenced from the root SetupLoggers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls whether and where the metrics HTTP endpoint listens.
// Metrics collection itself is always on; the listener is opt-in since most
// embedders (mobile hosts) have no use for a scrape endpoint.
type Config struct {
	// ListenAddr is the address promhttp should bind, e.g. "127.0.0.1:9736".
	// Empty disables the listener.
	ListenAddr string
}

var (
	// BootstrapProgress reports the last observed Tor bootstrap percentage,
	// per spec.md C3's "status/bootstrap-phase" polling.
	BootstrapProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sifir",
		Subsystem: "tor",
		Name:      "bootstrap_progress_percent",
		Help:      "Last observed Tor daemon bootstrap progress, 0-100.",
	})

	// TunnelBytesTotal counts bytes relayed through SOCKS tunnels, labeled
	// by direction.
	TunnelBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sifir",
		Subsystem: "tunnel",
		Name:      "bytes_total",
		Help:      "Bytes relayed through SOCKS tunnels.",
	}, []string{"direction"})

	// HiddenServiceRequestsTotal counts HTTP requests accepted by the
	// hidden-service intake listener.
	HiddenServiceRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sifir",
		Subsystem: "intake",
		Name:      "requests_total",
		Help:      "HTTP requests accepted by the hidden-service intake listener.",
	})

	// WalletSyncHeight reports the last block height a wallet observed
	// during indexer sync, labeled by wallet name.
	WalletSyncHeight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sifir",
		Subsystem: "wallet",
		Name:      "sync_height",
		Help:      "Last block height observed by a wallet's indexer sync.",
	}, []string{"wallet"})

	// WalletUtxoCount reports the number of unspent outputs tracked by a
	// wallet, labeled by wallet name.
	WalletUtxoCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sifir",
		Subsystem: "wallet",
		Name:      "utxo_count",
		Help:      "Number of unspent outputs currently tracked by a wallet.",
	}, []string{"wallet"})
)

func init() {
	prometheus.MustRegister(
		BootstrapProgress,
		TunnelBytesTotal,
		HiddenServiceRequestsTotal,
		WalletSyncHeight,
		WalletUtxoCount,
	)
}

// Serve starts the promhttp scrape endpoint if cfg.ListenAddr is set. It
// blocks until the listener errors or the process exits, so callers should
// run it in its own goroutine.
func Serve(cfg Config) error {
	if cfg.ListenAddr == "" {
		log.Debugf("metrics listener disabled, no ListenAddr configured")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Infof("metrics listening on %s", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, mux)
}
