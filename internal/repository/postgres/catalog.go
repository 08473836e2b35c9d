package postgres

import (
	"context"
	"fmt"

	"github.com/medbill/ledger/internal/domain/catalog"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
)

// catalogRepository reads tables owned by the service catalog and pharmacy modules
type catalogRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewCatalogRepository(db *postgres.DB, logger *logger.Logger) catalog.Repository {
	return &catalogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *catalogRepository) GetService(ctx context.Context, id string) (*catalog.Service, error) {
	var svc catalog.Service
	query := `SELECT id, name, price, department FROM services WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &svc, query, id); err != nil {
		return nil, postgres.WrapError(err, fmt.Sprintf("failed to get service %s", id))
	}
	return &svc, nil
}

func (r *catalogRepository) GetInventoryItem(ctx context.Context, id string) (*catalog.InventoryItem, error) {
	var item catalog.InventoryItem
	query := `SELECT id, name, selling_price FROM inventory_items WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &item, query, id); err != nil {
		return nil, postgres.WrapError(err, fmt.Sprintf("failed to get inventory item %s", id))
	}
	return &item, nil
}

func (r *catalogRepository) FindService(ctx context.Context, department, nameContains string) (*catalog.Service, error) {
	query := `
		SELECT id, name, price, department
		FROM services
		WHERE department ILIKE $1 AND name ILIKE '%' || $2 || '%'
		ORDER BY name ASC, id ASC
		LIMIT 1`

	var svc catalog.Service
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &svc, query, department, nameContains); err != nil {
		return nil, postgres.WrapError(err, fmt.Sprintf("no %s service matching %q", department, nameContains))
	}
	return &svc, nil
}
