package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"routecard/internal/routing/domain"
)

const availabilityColumns = `id, part_id, site_id, is_capable, is_preferred,
	lead_time_seconds, min_lot_size, max_lot_size, unit_cost_cents,
	effective_from, expires_at, created_at, updated_at`

// availabilityRepository implements domain.AvailabilityRepository using SQLite.
type availabilityRepository struct {
	db *sql.DB
}

func newAvailabilityRepository(db *sql.DB) *availabilityRepository {
	return &availabilityRepository{db: db}
}

// Ensure availabilityRepository implements domain.AvailabilityRepository.
var _ domain.AvailabilityRepository = (*availabilityRepository)(nil)

func scanAvailability(scanner interface{ Scan(...any) error }) (*AvailabilityModel, error) {
	var model AvailabilityModel
	err := scanner.Scan(
		&model.ID, &model.PartID, &model.SiteID,
		&model.IsCapable, &model.IsPreferred,
		&model.LeadTimeSeconds, &model.MinLotSize, &model.MaxLotSize,
		&model.UnitCostCents,
		&model.EffectiveFrom, &model.ExpiresAt,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// Save persists an availability record. The (part, site) pair is unique, so
// upserting by pair keeps the record's identity stable across re-grants.
func (r *availabilityRepository) Save(record *domain.PartSiteAvailability) error {
	model := toAvailabilityModel(record)

	_, err := r.db.Exec(
		`INSERT INTO part_site_availability (
			id, part_id, site_id, is_capable, is_preferred,
			lead_time_seconds, min_lot_size, max_lot_size, unit_cost_cents,
			effective_from, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (part_id, site_id) DO UPDATE SET
			is_capable = excluded.is_capable,
			is_preferred = excluded.is_preferred,
			lead_time_seconds = excluded.lead_time_seconds,
			min_lot_size = excluded.min_lot_size,
			max_lot_size = excluded.max_lot_size,
			unit_cost_cents = excluded.unit_cost_cents,
			effective_from = excluded.effective_from,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		model.ID, model.PartID, model.SiteID,
		model.IsCapable, model.IsPreferred,
		model.LeadTimeSeconds, model.MinLotSize, model.MaxLotSize,
		model.UnitCostCents,
		model.EffectiveFrom, model.ExpiresAt,
		model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	return nil
}

// Find retrieves the record for a (part, site) pair.
func (r *availabilityRepository) Find(partID, siteID string) (*domain.PartSiteAvailability, error) {
	row := r.db.QueryRow(
		`SELECT `+availabilityColumns+` FROM part_site_availability
		 WHERE part_id = ? AND site_id = ?`,
		partID, siteID,
	)
	model, err := scanAvailability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.AvailabilityNotFoundError{PartID: partID, SiteID: siteID}
	}
	if err != nil {
		return nil, fmt.Errorf("find availability: %w", err)
	}
	return model.toDomain(), nil
}

// ListForPart retrieves all records for a part, ordered by site.
func (r *availabilityRepository) ListForPart(partID string) ([]*domain.PartSiteAvailability, error) {
	rows, err := r.db.Query(
		`SELECT `+availabilityColumns+` FROM part_site_availability
		 WHERE part_id = ? ORDER BY site_id ASC`,
		partID,
	)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.PartSiteAvailability
	for rows.Next() {
		model, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		records = append(records, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability rows: %w", err)
	}
	return records, nil
}

// Delete removes the record for a (part, site) pair.
func (r *availabilityRepository) Delete(partID, siteID string) error {
	result, err := r.db.Exec(
		`DELETE FROM part_site_availability WHERE part_id = ? AND site_id = ?`,
		partID, siteID,
	)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete availability rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.AvailabilityNotFoundError{PartID: partID, SiteID: siteID}
	}
	return nil
}
