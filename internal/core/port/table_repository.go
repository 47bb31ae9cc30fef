package port

import (
	"context"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
)

// TableRepository manages the table descriptor registry.
type TableRepository interface {
	List(ctx context.Context) ([]domain.TableDescriptor, error)
	GetByName(ctx context.Context, name string) (*domain.TableDescriptor, error)
	Create(ctx context.Context, desc domain.TableDescriptor) (int64, error)
	Update(ctx context.Context, desc domain.TableDescriptor) error
}

// RecordRepository provides generic row access to the registered statistics
// tables. Field shapes are a data-access concern; rows travel as maps.
type RecordRepository interface {
	ListRows(ctx context.Context, table string) ([]map[string]any, error)
	GetRow(ctx context.Context, table string, id int64) (map[string]any, error)
	InsertRow(ctx context.Context, table string, values map[string]any) (int64, error)
	UpdateRow(ctx context.Context, table string, id int64, values map[string]any) error
	DeleteRow(ctx context.Context, table string, id int64) error
}
