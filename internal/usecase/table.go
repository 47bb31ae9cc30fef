package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pollak-belso-projektek/indicator-backend/internal/core/domain"
	"github.com/pollak-belso-projektek/indicator-backend/internal/core/port"
	"github.com/pollak-belso-projektek/indicator-backend/internal/repository"
)

var (
	// ErrTableNotFound indicates the named table is not registered.
	ErrTableNotFound = errors.New("table not found")
	// ErrTableExists indicates the table name is already registered.
	ErrTableExists = errors.New("table already registered")
)

// TableService manages the table registry.
type TableService struct {
	tables port.TableRepository
}

// NewTableService constructs a TableService instance.
func NewTableService(tables port.TableRepository) *TableService {
	return &TableService{tables: tables}
}

// List returns every registered table descriptor.
func (s *TableService) List(ctx context.Context) ([]domain.TableDescriptor, error) {
	descriptors, err := s.tables.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return descriptors, nil
}

// Get resolves a descriptor by table name.
func (s *TableService) Get(ctx context.Context, name string) (*domain.TableDescriptor, error) {
	desc, err := s.tables.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	return desc, nil
}

// Register adds a new table descriptor to the registry.
func (s *TableService) Register(ctx context.Context, desc domain.TableDescriptor) (*domain.TableDescriptor, error) {
	desc.Name = strings.TrimSpace(desc.Name)
	if desc.Name == "" {
		return nil, fmt.Errorf("table name is required")
	}

	if _, err := s.tables.GetByName(ctx, desc.Name); err == nil {
		return nil, ErrTableExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check table: %w", err)
	}

	id, err := s.tables.Create(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("register table: %w", err)
	}
	desc.ID = id
	return &desc, nil
}

// Update rewrites a descriptor's alias and flags.
func (s *TableService) Update(ctx context.Context, desc domain.TableDescriptor) error {
	if err := s.tables.Update(ctx, desc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTableNotFound
		}
		return fmt.Errorf("update table: %w", err)
	}
	return nil
}
