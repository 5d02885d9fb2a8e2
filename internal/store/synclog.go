// internal/store/synclog.go
//
// sync_logs audit trail: one row per shop per fleet invocation.
//
// The row opens in status `running` before anything else happens for the
// shop and closes in `success` or `error` with the metrics gathered up to
// that point.  Automation watches this table, not the console output.

package store

import (
	"context"
	"fmt"
)

// Terminal and initial sync_logs states.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunMetrics is the counter set recorded on a sync_logs row.
type RunMetrics struct {
	ProductsFetched  int `db:"products_fetched"`
	VariantsFetched  int `db:"variants_fetched"`
	ProductsSynced   int `db:"products_synced"`
	VariantsSynced   int `db:"variants_synced"`
	ProductsDeleted  int `db:"products_deleted"`
	VariantsDeleted  int `db:"variants_deleted"`
	VariantsFiltered int `db:"variants_filtered"`
}

// StartSyncLog opens the audit row and returns its id.
func (s *Store) StartSyncLog(ctx context.Context, shopID int64) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `
        INSERT INTO sync_logs (shop_id, status)
        VALUES ($1, $2)
        RETURNING id`, shopID, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("insert sync log: %w", err)
	}
	return id, nil
}

// FinishSyncLog closes the audit row with a terminal status, the metrics,
// and the error message when status is error.
func (s *Store) FinishSyncLog(ctx context.Context, id int64, status string, m RunMetrics, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE sync_logs SET
               status            = $2,
               completed_at      = now(),
               error_message     = NULLIF($3, ''),
               products_fetched  = $4,
               variants_fetched  = $5,
               products_synced   = $6,
               variants_synced   = $7,
               products_deleted  = $8,
               variants_deleted  = $9,
               variants_filtered = $10
        WHERE  id = $1`,
		id, status, errMsg,
		m.ProductsFetched, m.VariantsFetched,
		m.ProductsSynced, m.VariantsSynced,
		m.ProductsDeleted, m.VariantsDeleted,
		m.VariantsFiltered)
	if err != nil {
		return fmt.Errorf("finish sync log %d: %w", id, err)
	}
	return nil
}
