package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/medcart/internal/domain/catalog"
)

const (
	medicineColumns = `id, name, price, mrp, category, manufacturer,
		requires_prescription, image_url, in_stock`

	listMedicinesSQL = `SELECT ` + medicineColumns + `
		FROM medicines
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR manufacturer ILIKE '%' || $2 || '%')
		ORDER BY name, id`

	getMedicineByIDSQL = `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1`

	getMedicinesByIDsSQL = `SELECT ` + medicineColumns + ` FROM medicines WHERE id = ANY($1)`

	upsertMedicineSQL = `INSERT INTO medicines (` + medicineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			mrp = EXCLUDED.mrp,
			category = EXCLUDED.category,
			manufacturer = EXCLUDED.manufacturer,
			requires_prescription = EXCLUDED.requires_prescription,
			image_url = EXCLUDED.image_url,
			in_stock = EXCLUDED.in_stock`
)

var _ catalog.Repository = (*MedicineRepository)(nil)

// MedicineRepository implements catalog.Repository backed by PostgreSQL.
type MedicineRepository struct {
	pool *pgxpool.Pool
}

// NewMedicineRepository returns a MedicineRepository that uses the given pool.
func NewMedicineRepository(pool *pgxpool.Pool) *MedicineRepository {
	return &MedicineRepository{pool: pool}
}

// List returns medicines matching f ordered by name.
func (r *MedicineRepository) List(ctx context.Context, f catalog.Filter) ([]catalog.Medicine, error) {
	rows, err := r.pool.Query(ctx, listMedicinesSQL, f.Category, f.Search)
	if err != nil {
		return nil, fmt.Errorf("listing medicines: %w", err)
	}
	return pgx.CollectRows(rows, scanMedicine)
}

// GetByID returns a single medicine by its identifier.
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*catalog.Medicine, error) {
	rows, err := r.pool.Query(ctx, getMedicineByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting medicine %q: %w", id, err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMedicine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting medicine %q: %w", id, err)
	}
	return &m, nil
}

// GetByIDs returns medicines matching any of the given IDs.
func (r *MedicineRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Medicine, error) {
	rows, err := r.pool.Query(ctx, getMedicinesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting medicines by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMedicine)
}

// Upsert inserts or replaces a catalog entry.
func (r *MedicineRepository) Upsert(ctx context.Context, m catalog.Medicine) error {
	_, err := r.pool.Exec(ctx, upsertMedicineSQL,
		m.ID, m.Name, m.Price, m.MRP, m.Category, m.Manufacturer,
		m.RequiresPrescription, m.ImageURL, m.InStock,
	)
	if err != nil {
		return fmt.Errorf("upserting medicine %q: %w", m.ID, err)
	}
	return nil
}

func scanMedicine(row pgx.CollectableRow) (catalog.Medicine, error) {
	var (
		m     catalog.Medicine
		price decimal.Decimal
		mrp   decimal.NullDecimal
	)
	err := row.Scan(
		&m.ID, &m.Name, &price, &mrp, &m.Category, &m.Manufacturer,
		&m.RequiresPrescription, &m.ImageURL, &m.InStock,
	)
	m.Price = price
	m.MRP = mrp
	return m, err
}
