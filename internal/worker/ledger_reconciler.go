package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/metrics"
)

// LedgerReconciler は帳簿の booked_seats を予約台帳から再計算するワーカー
// 補償解放の失敗や切り詰め解放で生じたずれを定期的に修正する
type LedgerReconciler struct {
	reconciler inventory.Reconciler
	interval   time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewLedgerReconciler は新しいリコンサイラーを作成
func NewLedgerReconciler(r inventory.Reconciler, interval time.Duration) *LedgerReconciler {
	return &LedgerReconciler{
		reconciler: r,
		interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start はリコンサイラーを開始
func (w *LedgerReconciler) Start(ctx context.Context) {
	logger.Info("帳簿整合性チェックワーカー開始",
		zap.Duration("interval", w.interval),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("帳簿整合性チェックワーカー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("帳簿整合性チェックワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// Stop はリコンサイラーを停止
func (w *LedgerReconciler) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// reconcile はずれたバケットを修正
func (w *LedgerReconciler) reconcile(ctx context.Context) {
	log := logger.Get()
	log.Debug("帳簿整合性チェック開始")

	fixed, err := w.reconciler.ReconcileBuckets(ctx)
	if err != nil {
		log.Error("帳簿整合性チェック失敗", zap.Error(err))
		return
	}

	if fixed > 0 {
		log.Warn("帳簿のずれを修正", zap.Int("buckets", fixed))
		if m := metrics.Get(); m != nil {
			m.ReconciledBuckets.Add(float64(fixed))
		}
	} else {
		log.Debug("帳簿のずれなし")
	}
}
