package port

import (
	"context"
	"stockrelay/internal/core/domain"
)

type InventoryChecker interface {
	// Check runs the external checker once and returns the parsed product records.
	Check(ctx context.Context) ([]domain.Product, error)
}
