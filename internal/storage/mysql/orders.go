package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"glazing-backend/internal/storage"
)

const tableOrders = "production_orders"

func (s *Storage) GetOrder(ctx context.Context, id string) (*storage.ProductionOrder, error) {
	var order storage.ProductionOrder
	version, err := s.getDoc(ctx, tableOrders, id, &order)
	if err != nil {
		return nil, err
	}
	order.Version = version
	return &order, nil
}

func (s *Storage) ListOrders(ctx context.Context) ([]*storage.ProductionOrder, error) {
	docs, versions, err := listDocs[storage.ProductionOrder](ctx, s, tableOrders)
	if err != nil {
		return nil, err
	}
	orders := make([]*storage.ProductionOrder, len(docs))
	for i := range docs {
		docs[i].Version = versions[i]
		orders[i] = &docs[i]
	}
	return orders, nil
}

func (s *Storage) InsertOrder(ctx context.Context, order *storage.ProductionOrder) error {
	if err := s.insertDoc(ctx, tableOrders, order.ID, order); err != nil {
		return err
	}
	order.Version = 1
	return nil
}

func (s *Storage) UpdateOrder(ctx context.Context, order *storage.ProductionOrder) error {
	if err := s.updateDoc(ctx, tableOrders, order.ID, order, order.Version); err != nil {
		return err
	}
	order.Version++
	return nil
}

func (s *Storage) DeleteOrder(ctx context.Context, id string) error {
	const op = "storage.mysql.production_orders.delete"

	res, err := s.db.ExecContext(ctx, `DELETE FROM production_orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// InsertOrderWithTask writes a replacement order together with the task that
// reported the defect, in one transaction. The defect report either commits
// with its replacement order or not at all.
func (s *Storage) InsertOrderWithTask(ctx context.Context, order *storage.ProductionOrder, task *storage.AssemblyTask) error {
	const op = "storage.mysql.production_orders.insertWithTask"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	orderRaw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO production_orders (id, doc, version) VALUES (?, ?, 1)`,
		order.ID, orderRaw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	taskRaw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE assembly_tasks SET doc = ?, version = version + 1 WHERE id = ? AND version = ?`,
		taskRaw, task.ID, task.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	order.Version = 1
	task.Version++
	return nil
}
