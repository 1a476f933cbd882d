package odoo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/commercehub/notifier/internal/notification"
)

// Watermark keys persisted between sync cycles.
const (
	WatermarkLastSync = "odoo_approval_last_sync"
	WatermarkLastID   = "odoo_approval_last_id"
)

// ERPClient is the subset of the Odoo client the worker depends on.
type ERPClient interface {
	Configured() bool
	Authenticate(ctx context.Context) error
	FetchApprovalOrders(ctx context.Context, since time.Time, lastID int64, limit int) ([]SaleOrder, error)
}

// WatermarkStore persists the sync cursors. Implemented by the datastore
// sync state store.
type WatermarkStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// AdminNotifier delivers sync-originated notifications. Implemented by the
// notification service.
type AdminNotifier interface {
	NotifySystemAnnouncement(ctx context.Context, userID, title, message string, priority notification.Priority, data map[string]any, channels []notification.Channel) (*notification.Notification, error)
}

// SyncObserver receives cycle outcomes. Implemented by the observability
// metrics; a nil observer is skipped.
type SyncObserver interface {
	SyncCycleCompleted()
	SyncCycleFailed()
	SyncRecordDeduped()
}

// approvalTitles maps ERP approval states to display titles.
var approvalTitles = map[string]string{
	"submitted": "Order submitted for approval",
	"approved":  "Order approved",
	"rejected":  "Order rejected",
	"confirmed": "Order confirmed",
}

// ApprovalTitle returns the display title for an approval state. Unmapped
// states get a generic title.
func ApprovalTitle(state string) string {
	if title, ok := approvalTitles[state]; ok {
		return title
	}
	return "Order status update"
}

// WorkerConfig holds polling sync worker settings.
type WorkerConfig struct {
	Interval    time.Duration // polling interval
	Lookback    time.Duration // first-sync lookback window
	PageSize    int           // max records per cycle
	AdminUserID string        // recipient of sync-originated notifications
}

// Worker runs watermark-based incremental pull from the ERP on a fixed
// interval. A cycle that fails leaves the watermarks untouched so the next
// tick retries the same window; the timer keeps firing regardless of prior
// outcomes.
type Worker struct {
	config     WorkerConfig
	client     ERPClient
	watermarks WatermarkStore
	dedup      DedupCache
	notifier   AdminNotifier
	observer   SyncObserver
	logger     *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWorker creates a polling sync worker.
func NewWorker(config WorkerConfig, client ERPClient, watermarks WatermarkStore, dedup DedupCache, notifier AdminNotifier, observer SyncObserver, logger *slog.Logger) *Worker {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Lookback <= 0 {
		config.Lookback = time.Hour
	}
	if config.PageSize <= 0 {
		config.PageSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		config:     config,
		client:     client,
		watermarks: watermarks,
		dedup:      dedup,
		notifier:   notifier,
		observer:   observer,
		logger:     logger.With("service", "odoo-sync"),
	}
}

// Start installs the polling timer and triggers an immediate first cycle.
// Calling Start again reinstalls the timer. An in-flight cycle from a
// previous timer is not cancelled; at most one extra cycle may overlap a
// restart.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.stop != nil {
		close(w.stop)
	}
	stop := make(chan struct{})
	w.stop = stop
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.cycle()

		ticker := time.NewTicker(w.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				w.cycle()
			}
		}
	}()
}

// Stop halts the polling timer and waits for the loop to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// cycle runs one sync pass, recovering every failure at this boundary.
func (w *Worker) cycle() {
	if err := w.RunCycle(context.Background()); err != nil {
		w.logger.Error("sync cycle failed", "error", err)
		if w.observer != nil {
			w.observer.SyncCycleFailed()
		}
		return
	}
	if w.observer != nil {
		w.observer.SyncCycleCompleted()
	}
}

// RunCycle performs one synchronization pass. An error means the watermarks
// were not advanced and the same window will be retried next tick.
func (w *Worker) RunCycle(ctx context.Context) error {
	if !w.client.Configured() {
		// integration disabled, not an error
		return nil
	}

	if err := w.client.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	since, lastID, err := w.loadWatermarks()
	if err != nil {
		return fmt.Errorf("loading watermarks: %w", err)
	}

	cycleStart := time.Now().UTC()
	orders, err := w.client.FetchApprovalOrders(ctx, since, lastID, w.config.PageSize)
	if err != nil {
		return fmt.Errorf("fetching orders: %w", err)
	}

	maxID := lastID
	notified := 0
	for i := range orders {
		order := &orders[i]
		if order.ID > maxID {
			maxID = order.ID
		}

		key := order.DedupKey()
		if w.dedup.Seen(key) {
			if w.observer != nil {
				w.observer.SyncRecordDeduped()
			}
			continue
		}

		if err := w.notifyOrder(ctx, order); err != nil {
			return fmt.Errorf("notifying for order %s: %w", order.Name, err)
		}
		w.dedup.Mark(key)
		notified++
	}

	w.dedup.Sweep()

	if err := w.saveWatermarks(cycleStart, maxID); err != nil {
		return fmt.Errorf("saving watermarks: %w", err)
	}

	if notified > 0 || len(orders) > 0 {
		w.logger.Info("sync cycle completed",
			"fetched", len(orders),
			"notified", notified,
			"last_id", maxID)
	}
	return nil
}

// notifyOrder delivers one sync-originated admin notification.
func (w *Worker) notifyOrder(ctx context.Context, order *SaleOrder) error {
	title := ApprovalTitle(order.ApprovalState)
	message := fmt.Sprintf("%s: %s (%.2f)", title, order.Name, order.AmountTotal)
	if order.Customer != "" {
		message = fmt.Sprintf("%s: %s for %s (%.2f)", title, order.Name, order.Customer, order.AmountTotal)
	}

	_, err := w.notifier.NotifySystemAnnouncement(ctx, w.config.AdminUserID, title, message,
		notification.PriorityNormal,
		map[string]any{
			"order_id":       order.ID,
			"order_name":     order.Name,
			"approval_state": order.ApprovalState,
			"state":          order.State,
			"amount":         order.AmountTotal,
			"source":         "odoo_sync",
		},
		[]notification.Channel{notification.ChannelInApp})
	return err
}

// loadWatermarks reads the cursors, applying defaults for a first sync:
// now minus the lookback window for the timestamp and zero for the id.
func (w *Worker) loadWatermarks() (time.Time, int64, error) {
	since := time.Now().UTC().Add(-w.config.Lookback)
	raw, err := w.watermarks.Get(WatermarkLastSync)
	if err != nil {
		return time.Time{}, 0, err
	}
	if raw != "" {
		parsed, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return time.Time{}, 0, fmt.Errorf("parsing last sync watermark %q: %w", raw, parseErr)
		}
		since = parsed
	}

	var lastID int64
	raw, err = w.watermarks.Get(WatermarkLastID)
	if err != nil {
		return time.Time{}, 0, err
	}
	if raw != "" {
		lastID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("parsing last id watermark %q: %w", raw, err)
		}
	}
	return since, lastID, nil
}

// saveWatermarks persists the cursors. The id cursor never regresses.
func (w *Worker) saveWatermarks(syncedAt time.Time, maxID int64) error {
	if err := w.watermarks.Set(WatermarkLastSync, syncedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	return w.watermarks.Set(WatermarkLastID, strconv.FormatInt(maxID, 10))
}
