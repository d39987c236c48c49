package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"routecard/internal/routing/domain"
)

// segmentColumns is the list of columns to select for segment queries.
const segmentColumns = `id, code, name, setup_seconds, run_seconds, teardown_seconds,
	site_id, is_standard, created_at, updated_at`

// segmentRepository implements domain.SegmentRepository using SQLite.
type segmentRepository struct {
	db *sql.DB
}

func newSegmentRepository(db *sql.DB) *segmentRepository {
	return &segmentRepository{db: db}
}

// Ensure segmentRepository implements domain.SegmentRepository.
var _ domain.SegmentRepository = (*segmentRepository)(nil)

func scanSegment(scanner interface{ Scan(...any) error }) (*SegmentModel, error) {
	var model SegmentModel
	err := scanner.Scan(
		&model.ID, &model.Code, &model.Name,
		&model.SetupSeconds, &model.RunSeconds, &model.TeardownSeconds,
		&model.SiteID, &model.IsStandard,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

// Save persists a segment, inserting or updating by identity. A new segment
// whose code is already registered under a different identity fails with
// ErrDuplicateCode.
func (r *segmentRepository) Save(segment *domain.ProcessSegment) error {
	model := toSegmentModel(segment)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin segment save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.QueryRow(`SELECT id FROM process_segments WHERE code = ?`, model.Code).Scan(&existingID)
	switch {
	case err == nil && existingID != model.ID:
		return domain.ErrDuplicateCode
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check segment code: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO process_segments (
			id, code, name, setup_seconds, run_seconds, teardown_seconds,
			site_id, is_standard, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			setup_seconds = excluded.setup_seconds,
			run_seconds = excluded.run_seconds,
			teardown_seconds = excluded.teardown_seconds,
			site_id = excluded.site_id,
			is_standard = excluded.is_standard,
			updated_at = excluded.updated_at`,
		model.ID, model.Code, model.Name,
		model.SetupSeconds, model.RunSeconds, model.TeardownSeconds,
		model.SiteID, model.IsStandard,
		model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save segment: %w", err)
	}
	return tx.Commit()
}

// FindByID retrieves a segment by identity.
func (r *segmentRepository) FindByID(id string) (*domain.ProcessSegment, error) {
	row := r.db.QueryRow(`SELECT `+segmentColumns+` FROM process_segments WHERE id = ?`, id)
	model, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.SegmentNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("find segment by id: %w", err)
	}
	return model.toDomain(), nil
}

// FindByCode retrieves a segment by its unique code.
func (r *segmentRepository) FindByCode(code string) (*domain.ProcessSegment, error) {
	row := r.db.QueryRow(`SELECT `+segmentColumns+` FROM process_segments WHERE code = ?`, code)
	model, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.SegmentNotFoundError{Code: code}
	}
	if err != nil {
		return nil, fmt.Errorf("find segment by code: %w", err)
	}
	return model.toDomain(), nil
}

// List retrieves segments matching the filter, ordered by code.
func (r *segmentRepository) List(filter domain.SegmentFilter) ([]*domain.ProcessSegment, error) {
	query := `SELECT ` + segmentColumns + ` FROM process_segments WHERE 1=1`
	args := []any{}

	if filter.SiteID != "" {
		if filter.IncludeGlobal {
			query += ` AND (site_id = ? OR site_id IS NULL)`
		} else {
			query += ` AND site_id = ?`
		}
		args = append(args, filter.SiteID)
	}
	if filter.Standard != nil {
		query += ` AND is_standard = ?`
		args = append(args, *filter.Standard)
	}
	query += ` ORDER BY code ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var segments []*domain.ProcessSegment
	for rows.Next() {
		model, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		segments = append(segments, model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment rows: %w", err)
	}
	return segments, nil
}

// Delete removes a segment by identity.
func (r *segmentRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM process_segments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete segment rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.SegmentNotFoundError{ID: id}
	}
	return nil
}
