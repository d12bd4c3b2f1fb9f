package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/toystore/fulfillment/internal/domain/inventory"
)

// InventoryRepository is an in-memory stock ledger. Every product has its
// own row mutex, so operations on disjoint products run in parallel; the
// outer RWMutex only guards the row map itself. Multi-row operations lock
// rows in ascending product id order, which makes concurrent multi-line
// reservations deadlock-free.
type InventoryRepository struct {
	mu   sync.RWMutex
	rows map[int64]*inventoryRow
}

type inventoryRow struct {
	mu     sync.Mutex
	record domain.Record
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{rows: make(map[int64]*inventoryRow)}
}

// SetStock seeds or replaces a product's counter. Used by the composition
// root and admin tooling, not by the checkout path.
func (r *InventoryRepository) SetStock(productID int64, quantity int, active bool) error {
	record, err := domain.NewRecord(productID, quantity, active)
	if err != nil {
		return err
	}
	row := r.row(productID)
	row.mu.Lock()
	defer row.mu.Unlock()
	row.record = *record
	return nil
}

// Record returns a detached copy of the product's counter.
func (r *InventoryRepository) Record(ctx context.Context, productID int64) (*domain.Record, error) {
	_ = ctx
	row, ok := r.lookup(productID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	record := row.record
	return &record, nil
}

func (r *InventoryRepository) CheckAvailability(ctx context.Context, productID int64, quantity int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if quantity <= 0 {
		return false, domain.ErrInvalidQuantity
	}
	row, ok := r.lookup(productID)
	if !ok {
		return false, nil
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	return row.record.Active && row.record.Quantity >= quantity, nil
}

// ReserveAndDecrement applies every line or none. All involved rows stay
// locked from validation through decrement, so a racing call for the same
// product observes the post-decrement counter and fails cleanly instead of
// double-spending the last units.
func (r *InventoryRepository) ReserveAndDecrement(ctx context.Context, lines []domain.Line) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	quantities, ids, err := mergeLines(lines)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	locked := make([]*inventoryRow, 0, len(ids))
	defer unlockRows(&locked)

	var shortage []int64
	targets := make([]*inventoryRow, 0, len(ids))
	for _, id := range ids {
		row, ok := r.lookup(id)
		if !ok {
			// Unknown products are shortages, not infrastructure errors:
			// a deleted product simply cannot be fulfilled.
			shortage = append(shortage, id)
			continue
		}
		row.mu.Lock()
		locked = append(locked, row)
		if !row.record.Active || quantities[id] > row.record.Quantity {
			shortage = append(shortage, id)
			continue
		}
		targets = append(targets, row)
	}

	if len(shortage) > 0 {
		return &domain.ShortageError{ProductIDs: shortage}
	}

	for _, row := range targets {
		if err := row.record.Deduct(quantities[row.record.ProductID]); err != nil {
			// Unreachable: validated above under the same locks.
			return err
		}
	}
	return nil
}

// Restore credits quantities back. Rows for products deleted since the
// order was placed are recreated inactive so the credit is never lost.
func (r *InventoryRepository) Restore(ctx context.Context, lines []domain.Line) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	quantities, ids, err := mergeLines(lines)
	if err != nil {
		return err
	}

	locked := make([]*inventoryRow, 0, len(ids))
	defer unlockRows(&locked)

	for _, id := range ids {
		row := r.row(id)
		row.mu.Lock()
		locked = append(locked, row)
	}
	for _, row := range locked {
		if err := row.record.Restore(quantities[row.record.ProductID]); err != nil {
			return err
		}
	}
	return nil
}

// mergeLines folds duplicate product ids together and returns the ids in
// ascending order, the canonical lock order for multi-row operations.
func mergeLines(lines []domain.Line) (map[int64]int, []int64, error) {
	quantities := make(map[int64]int, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, nil, domain.ErrInvalidQuantity
		}
		if _, ok := quantities[l.ProductID]; !ok {
			ids = append(ids, l.ProductID)
		}
		quantities[l.ProductID] += l.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return quantities, ids, nil
}

func unlockRows(rows *[]*inventoryRow) {
	for i := len(*rows) - 1; i >= 0; i-- {
		(*rows)[i].mu.Unlock()
	}
}

func (r *InventoryRepository) lookup(productID int64) (*inventoryRow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[productID]
	return row, ok
}

// row returns the product's row, creating an empty inactive one if absent.
func (r *InventoryRepository) row(productID int64) *inventoryRow {
	if row, ok := r.lookup(productID); ok {
		return row
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[productID]; ok {
		return row
	}
	row := &inventoryRow{record: domain.Record{ProductID: productID, UpdatedAt: time.Now().UTC()}}
	r.rows[productID] = row
	return row
}
