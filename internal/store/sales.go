package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bakery-pos/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type saleItemRow struct {
	SaleID   string `db:"sale_id"`
	Snapshot []byte `db:"snapshot"`
}

// CommitSale inserts the sale and its lines and decrements stock in one transaction.
// Product rows are locked so concurrent commits cannot lose a decrement.
func (s *PostgresStore) CommitSale(ctx context.Context, sale *models.SaleRecord) ([]StockChange, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if sale.Timestamp.IsZero() {
		sale.Timestamp = time.Now()
	}
	if err := tx.GetContext(ctx, &sale.Seq, "SELECT nextval('sale_seq')"); err != nil {
		return nil, fmt.Errorf("failed to allocate sale sequence: %w", err)
	}
	sale.ID = FormatSaleID(sale.Seq, sale.Timestamp)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, seq, total, method, username, customer, created_at, is_finished)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sale.ID, sale.Seq, sale.Total, sale.Method, sale.User, sale.Customer, sale.Timestamp, sale.IsFinished)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	changes := make([]StockChange, 0, len(sale.Items))
	for i, item := range sale.Items {
		snapshot, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sale item: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, position, product_id, quantity, snapshot)
			VALUES ($1, $2, $3, $4, $5)`,
			sale.ID, i, item.ID, item.Quantity, snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sale item: %w", err)
		}

		var before decimal.Decimal
		err = tx.GetContext(ctx, &before,
			"SELECT current_stock FROM products WHERE id = $1 FOR UPDATE", item.ID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", item.ID, err)
		}

		after := ClampedDecrement(before, item.Quantity)
		if _, err := tx.ExecContext(ctx,
			"UPDATE products SET current_stock = $1 WHERE id = $2", after, item.ID); err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
		changes = append(changes, StockChange{ProductID: item.ID, Before: before, Sold: item.Quantity, After: after})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

// GetSale retrieves a sale and its lines by ID
func (s *PostgresStore) GetSale(ctx context.Context, id string) (*models.SaleRecord, error) {
	var sale models.SaleRecord
	err := s.db.GetContext(ctx, &sale, `
		SELECT id, seq, total, method, username, customer, created_at, is_finished
		FROM sales WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	sales := []models.SaleRecord{sale}
	if err := s.loadItems(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

// ListSales retrieves the working set in commit order
func (s *PostgresStore) ListSales(ctx context.Context) ([]models.SaleRecord, error) {
	sales := []models.SaleRecord{}
	err := s.db.SelectContext(ctx, &sales, `
		SELECT id, seq, total, method, username, customer, created_at, is_finished
		FROM sales ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// PurgeSales deletes every sale paid with method; lines cascade
func (s *PostgresStore) PurgeSales(ctx context.Context, method models.PaymentMethod) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sales WHERE method = $1", method)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) loadItems(ctx context.Context, sales []models.SaleRecord) error {
	if len(sales) == 0 {
		return nil
	}

	index := make(map[string]int, len(sales))
	ids := make([]string, len(sales))
	for i := range sales {
		index[sales[i].ID] = i
		ids[i] = sales[i].ID
	}

	query, args, err := sqlx.In(
		"SELECT sale_id, snapshot FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, position", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var rows []saleItemRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return err
	}

	for _, row := range rows {
		i, ok := index[row.SaleID]
		if !ok {
			continue
		}
		var item models.TicketItem
		if err := json.Unmarshal(row.Snapshot, &item); err != nil {
			return fmt.Errorf("failed to unmarshal sale item: %w", err)
		}
		sales[i].Items = append(sales[i].Items, item)
	}
	return nil
}
