package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約試行の総数（result: confirmed, insufficient_seats, validation_error, compensated, error）
	BookingsTotal *prometheus.CounterVec

	// 帳簿操作で確保・解放された座席数（operation: reserve/release）
	LedgerSeatsTotal *prometheus.CounterVec

	// 解放要求が予約数を上回った回数（整合性警告）
	LedgerShortReleases prometheus.Counter

	// 整合性チェックで修正されたバケット数
	ReconciledBuckets prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking attempts",
			},
			[]string{"result"},
		),
		LedgerSeatsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_seats_total",
				Help: "Seats reserved and released through the inventory ledger",
			},
			[]string{"operation"},
		),
		LedgerShortReleases: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_short_releases_total",
				Help: "Release requests that exceeded the booked count (clamped to zero)",
			},
		),
		ReconciledBuckets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_reconciled_buckets_total",
				Help: "Buckets corrected by the consistency reconciler",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.LedgerSeatsTotal,
		m.LedgerShortReleases,
		m.ReconciledBuckets,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
