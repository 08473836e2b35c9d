package catalog

import "context"

// Repository reads the service catalog and inventory price list
type Repository interface {
	GetService(ctx context.Context, id string) (*Service, error)
	GetInventoryItem(ctx context.Context, id string) (*InventoryItem, error)
	// FindService returns the first service in department whose name contains nameContains,
	// case-insensitively, ordered by name. ErrNotFound if none match.
	FindService(ctx context.Context, department, nameContains string) (*Service, error)
}
