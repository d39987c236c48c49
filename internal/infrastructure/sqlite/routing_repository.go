package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"routecard/internal/routing/domain"
)

const routingColumns = `id, part_id, site_id, version, state, is_primary,
	effective_from, expires_at, approved_by, approved_at, revision,
	created_at, updated_at`

const stepColumns = `id, routing_id, step_number, segment_id,
	setup_override_seconds, run_override_seconds, teardown_override_seconds,
	work_center, is_optional, is_quality_checkpoint, is_critical_path,
	created_at, updated_at`

const dependencyColumns = `id, routing_id, dependent_step_id, prerequisite_step_id,
	dependency_type, timing_type, lag_seconds, lead_seconds, created_at`

// routingRepository implements domain.RoutingRepository using SQLite. Every
// write persists the routing row together with its full step and edge set in
// one transaction.
type routingRepository struct {
	db *sql.DB
}

func newRoutingRepository(db *sql.DB) *routingRepository {
	return &routingRepository{db: db}
}

// Ensure routingRepository implements domain.RoutingRepository.
var _ domain.RoutingRepository = (*routingRepository)(nil)

func scanRouting(scanner interface{ Scan(...any) error }) (*RoutingModel, error) {
	var model RoutingModel
	err := scanner.Scan(
		&model.ID, &model.PartID, &model.SiteID, &model.Version,
		&model.State, &model.IsPrimary,
		&model.EffectiveFrom, &model.ExpiresAt,
		&model.ApprovedBy, &model.ApprovedAt,
		&model.Revision,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

func scanStep(scanner interface{ Scan(...any) error }) (*StepModel, error) {
	var model StepModel
	err := scanner.Scan(
		&model.ID, &model.RoutingID, &model.StepNumber, &model.SegmentID,
		&model.SetupOverrideSeconds, &model.RunOverrideSeconds, &model.TeardownOverrideSeconds,
		&model.WorkCenter,
		&model.IsOptional, &model.IsQualityCheckpoint, &model.IsCriticalPath,
		&model.CreatedAt, &model.UpdatedAt,
	)
	return &model, err
}

func scanDependency(scanner interface{ Scan(...any) error }) (*DependencyModel, error) {
	var model DependencyModel
	err := scanner.Scan(
		&model.ID, &model.RoutingID,
		&model.DependentStepID, &model.PrerequisiteStepID,
		&model.DependencyType, &model.TimingType,
		&model.LagSeconds, &model.LeadSeconds,
		&model.CreatedAt,
	)
	return &model, err
}

// Create inserts a new routing aggregate with revision 1.
func (r *routingRepository) Create(routing *domain.Routing) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin routing create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.QueryRow(
		`SELECT id FROM routings WHERE part_id = ? AND site_id = ? AND version = ?`,
		routing.PartID(), routing.SiteID(), routing.Version(),
	).Scan(&existingID)
	switch {
	case err == nil:
		return domain.ErrDuplicateVersion
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check routing version: %w", err)
	}

	routing.SetRevision(1)
	model := toRoutingModel(routing)

	_, err = tx.Exec(
		`INSERT INTO routings (
			id, part_id, site_id, version, state, is_primary,
			effective_from, expires_at, approved_by, approved_at, revision,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.ID, model.PartID, model.SiteID, model.Version,
		model.State, model.IsPrimary,
		model.EffectiveFrom, model.ExpiresAt,
		model.ApprovedBy, model.ApprovedAt,
		model.Revision,
		model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert routing: %w", err)
	}

	if err := insertStepsAndEdges(tx, routing); err != nil {
		return err
	}
	return tx.Commit()
}

// Save updates an existing aggregate. The write is guarded by the revision
// last observed on the entity; a stale revision fails with
// ErrConcurrentModification. On success the entity's revision is advanced.
func (r *routingRepository) Save(routing *domain.Routing) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin routing save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveRoutingTx(tx, routing); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit routing save: %w", err)
	}
	routing.SetRevision(routing.Revision() + 1)
	return nil
}

// SavePromotion atomically persists a promoted routing and, when not nil, its
// demoted sibling. Both writes commit as a single all-or-nothing unit.
func (r *routingRepository) SavePromotion(promoted, demoted *domain.Routing) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin promotion: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveRoutingTx(tx, promoted); err != nil {
		return err
	}
	if demoted != nil {
		if err := saveRoutingTx(tx, demoted); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit promotion: %w", err)
	}
	promoted.SetRevision(promoted.Revision() + 1)
	if demoted != nil {
		demoted.SetRevision(demoted.Revision() + 1)
	}
	return nil
}

// saveRoutingTx writes the routing row with a revision guard, then replaces
// its step and edge rows wholesale. Step identities are stable across saves,
// so the replace keeps external references intact.
func saveRoutingTx(tx *sql.Tx, routing *domain.Routing) error {
	model := toRoutingModel(routing)

	result, err := tx.Exec(
		`UPDATE routings SET
			state = ?, is_primary = ?,
			effective_from = ?, expires_at = ?,
			approved_by = ?, approved_at = ?,
			revision = revision + 1, updated_at = ?
		 WHERE id = ? AND revision = ?`,
		model.State, model.IsPrimary,
		model.EffectiveFrom, model.ExpiresAt,
		model.ApprovedBy, model.ApprovedAt,
		model.UpdatedAt,
		model.ID, model.Revision,
	)
	if err != nil {
		return fmt.Errorf("update routing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update routing rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRow(`SELECT 1 FROM routings WHERE id = ?`, model.ID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.RoutingNotFoundError{ID: model.ID}
			}
			return fmt.Errorf("check routing exists: %w", err)
		}
		return domain.ErrConcurrentModification
	}

	// Edge rows cascade from their steps.
	if _, err := tx.Exec(`DELETE FROM routing_steps WHERE routing_id = ?`, model.ID); err != nil {
		return fmt.Errorf("clear routing steps: %w", err)
	}
	return insertStepsAndEdges(tx, routing)
}

func insertStepsAndEdges(tx *sql.Tx, routing *domain.Routing) error {
	for _, step := range routing.Steps() {
		model := toStepModel(routing.ID(), step)
		_, err := tx.Exec(
			`INSERT INTO routing_steps (
				id, routing_id, step_number, segment_id,
				setup_override_seconds, run_override_seconds, teardown_override_seconds,
				work_center, is_optional, is_quality_checkpoint, is_critical_path,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			model.ID, model.RoutingID, model.StepNumber, model.SegmentID,
			model.SetupOverrideSeconds, model.RunOverrideSeconds, model.TeardownOverrideSeconds,
			model.WorkCenter,
			model.IsOptional, model.IsQualityCheckpoint, model.IsCriticalPath,
			model.CreatedAt, model.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert routing step: %w", err)
		}
	}
	for _, dep := range routing.Dependencies() {
		model := toDependencyModel(routing.ID(), dep)
		_, err := tx.Exec(
			`INSERT INTO routing_step_dependencies (
				id, routing_id, dependent_step_id, prerequisite_step_id,
				dependency_type, timing_type, lag_seconds, lead_seconds, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			model.ID, model.RoutingID,
			model.DependentStepID, model.PrerequisiteStepID,
			model.DependencyType, model.TimingType,
			model.LagSeconds, model.LeadSeconds,
			model.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert step dependency: %w", err)
		}
	}
	return nil
}

// FindByID retrieves a routing aggregate by identity, steps and edges included.
func (r *routingRepository) FindByID(id string) (*domain.Routing, error) {
	row := r.db.QueryRow(`SELECT `+routingColumns+` FROM routings WHERE id = ?`, id)
	model, err := scanRouting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.RoutingNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("find routing by id: %w", err)
	}
	return r.hydrate(model)
}

// FindByVersion retrieves the routing for a (part, site, version) triple.
func (r *routingRepository) FindByVersion(partID, siteID, version string) (*domain.Routing, error) {
	row := r.db.QueryRow(
		`SELECT `+routingColumns+` FROM routings
		 WHERE part_id = ? AND site_id = ? AND version = ?`,
		partID, siteID, version,
	)
	model, err := scanRouting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.RoutingNotFoundError{PartID: partID, SiteID: siteID, Version: version}
	}
	if err != nil {
		return nil, fmt.Errorf("find routing by version: %w", err)
	}
	return r.hydrate(model)
}

// List retrieves routing aggregates matching the filter.
func (r *routingRepository) List(filter domain.RoutingFilter) ([]*domain.Routing, error) {
	query := `SELECT ` + routingColumns + ` FROM routings WHERE 1=1`
	args := []any{}

	if filter.PartID != "" {
		query += ` AND part_id = ?`
		args = append(args, filter.PartID)
	}
	if filter.SiteID != "" {
		query += ` AND site_id = ?`
		args = append(args, filter.SiteID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY part_id ASC, site_id ASC, version ASC`

	return r.query(query, args...)
}

// FindProduction retrieves all production-state routings for a (part, site)
// pair. The resolver narrows by effective window.
func (r *routingRepository) FindProduction(partID, siteID string) ([]*domain.Routing, error) {
	return r.query(
		`SELECT `+routingColumns+` FROM routings
		 WHERE part_id = ? AND site_id = ? AND state = ?
		 ORDER BY version ASC`,
		partID, siteID, string(domain.StateProduction),
	)
}

// SegmentInUse reports whether any step of a non-draft routing references the
// segment.
func (r *routingRepository) SegmentInUse(segmentID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM routing_steps s
		 JOIN routings r ON r.id = s.routing_id
		 WHERE s.segment_id = ? AND r.state != ?`,
		segmentID, string(domain.StateDraft),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check segment in use: %w", err)
	}
	return count > 0, nil
}

// Delete removes a routing. Steps and edges cascade.
func (r *routingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM routings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete routing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete routing rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.RoutingNotFoundError{ID: id}
	}
	return nil
}

func (r *routingRepository) query(query string, args ...any) ([]*domain.Routing, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query routings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var models []*RoutingModel
	for rows.Next() {
		model, err := scanRouting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan routing row: %w", err)
		}
		models = append(models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routing rows: %w", err)
	}

	routings := make([]*domain.Routing, 0, len(models))
	for _, model := range models {
		routing, err := r.hydrate(model)
		if err != nil {
			return nil, err
		}
		routings = append(routings, routing)
	}
	return routings, nil
}

// hydrate loads the routing's steps and edges and reconstitutes the aggregate.
func (r *routingRepository) hydrate(model *RoutingModel) (*domain.Routing, error) {
	stepRows, err := r.db.Query(
		`SELECT `+stepColumns+` FROM routing_steps
		 WHERE routing_id = ? ORDER BY step_number ASC`,
		model.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load routing steps: %w", err)
	}
	defer func() { _ = stepRows.Close() }()

	var steps []*domain.RoutingStep
	for stepRows.Next() {
		stepModel, err := scanStep(stepRows)
		if err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		steps = append(steps, stepModel.toDomain())
	}
	if err := stepRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step rows: %w", err)
	}

	depRows, err := r.db.Query(
		`SELECT `+dependencyColumns+` FROM routing_step_dependencies
		 WHERE routing_id = ? ORDER BY created_at ASC, id ASC`,
		model.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load step dependencies: %w", err)
	}
	defer func() { _ = depRows.Close() }()

	var deps []*domain.StepDependency
	for depRows.Next() {
		depModel, err := scanDependency(depRows)
		if err != nil {
			return nil, fmt.Errorf("scan dependency row: %w", err)
		}
		deps = append(deps, depModel.toDomain())
	}
	if err := depRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependency rows: %w", err)
	}

	return model.toDomain(steps, deps), nil
}
