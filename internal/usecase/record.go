package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/repository"
)

var (
	// ErrRecordNotFound indicates the row does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrTableLocked indicates the table rejects writes.
	ErrTableLocked = errors.New("table is locked")
	// ErrTableUnavailable indicates the table is hidden from access.
	ErrTableUnavailable = errors.New("table is not available")
)

// RecordService provides generic row access gated by the table registry.
// Every operation resolves the descriptor first so locked or unavailable
// tables never reach the data layer.
type RecordService struct {
	tables  port.TableRepository
	records port.RecordRepository
}

// NewRecordService constructs a RecordService instance.
func NewRecordService(tables port.TableRepository, records port.RecordRepository) *RecordService {
	return &RecordService{tables: tables, records: records}
}

// List returns all rows of a registered, available table.
func (s *RecordService) List(ctx context.Context, table string) ([]map[string]any, error) {
	desc, err := s.descriptor(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.records.ListRows(ctx, desc.Name)
	if err != nil {
		return nil, fmt.Errorf("list rows of %s: %w", desc.Name, err)
	}
	return rows, nil
}

// Get loads one row by id.
func (s *RecordService) Get(ctx context.Context, table string, id int64) (map[string]any, error) {
	desc, err := s.descriptor(ctx, table)
	if err != nil {
		return nil, err
	}

	row, err := s.records.GetRow(ctx, desc.Name, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get row of %s: %w", desc.Name, err)
	}
	return row, nil
}

// Create inserts a row into a writable table.
func (s *RecordService) Create(ctx context.Context, table string, values map[string]any) (int64, error) {
	desc, err := s.writableDescriptor(ctx, table)
	if err != nil {
		return 0, err
	}

	id, err := s.records.InsertRow(ctx, desc.Name, values)
	if err != nil {
		return 0, fmt.Errorf("insert row into %s: %w", desc.Name, err)
	}
	return id, nil
}

// Update rewrites the given columns of an existing row.
func (s *RecordService) Update(ctx context.Context, table string, id int64, values map[string]any) error {
	desc, err := s.writableDescriptor(ctx, table)
	if err != nil {
		return err
	}

	if err := s.records.UpdateRow(ctx, desc.Name, id, values); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("update row of %s: %w", desc.Name, err)
	}
	return nil
}

// Delete removes a row from a writable table.
func (s *RecordService) Delete(ctx context.Context, table string, id int64) error {
	desc, err := s.writableDescriptor(ctx, table)
	if err != nil {
		return err
	}

	if err := s.records.DeleteRow(ctx, desc.Name, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("delete row of %s: %w", desc.Name, err)
	}
	return nil
}

func (s *RecordService) descriptor(ctx context.Context, table string) (*domain.TableDescriptor, error) {
	desc, err := s.tables.GetByName(ctx, table)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("resolve table %s: %w", table, err)
	}
	if !desc.IsAvailable {
		return nil, ErrTableUnavailable
	}
	return desc, nil
}

func (s *RecordService) writableDescriptor(ctx context.Context, table string) (*domain.TableDescriptor, error) {
	desc, err := s.descriptor(ctx, table)
	if err != nil {
		return nil, err
	}
	if desc.IsLocked {
		return nil, ErrTableLocked
	}
	return desc, nil
}
