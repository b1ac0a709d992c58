package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sismepa/academic-api/internal/models"
)

// PeriodRepository handles persistence for academic periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository instantiates a period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = "id, name, start_date, end_date, active, registration_open, created_at, updated_at"

// List returns periods matching provided filters.
func (r *PeriodRepository) List(ctx context.Context, filter models.PeriodFilter) ([]models.AcademicPeriod, int, error) {
	base := "FROM academic_periods WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "start_date": true, "end_date": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", periodColumns, base, sortBy, order, size, offset)

	var periods []models.AcademicPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list periods: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count periods: %w", err)
	}

	return periods, total, nil
}

// FindByID loads a period by identifier.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_periods WHERE id = $1", periodColumns)
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActive returns the currently active period. sql.ErrNoRows means no
// period is active.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	return findActivePeriod(ctx, r.db)
}

// findActivePeriod also serves the registration transaction, so the
// period state is read on the same snapshot as the other checks.
func findActivePeriod(ctx context.Context, q queryer) (*models.AcademicPeriod, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_periods WHERE active = TRUE LIMIT 1", periodColumns)
	var period models.AcademicPeriod
	if err := q.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}

// Create inserts a new period record.
func (r *PeriodRepository) Create(ctx context.Context, period *models.AcademicPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now

	const query = `INSERT INTO academic_periods (id, name, start_date, end_date, active, registration_open, created_at, updated_at)
		VALUES (:id, :name, :start_date, :end_date, :active, :registration_open, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// Update modifies an existing period.
func (r *PeriodRepository) Update(ctx context.Context, period *models.AcademicPeriod) error {
	period.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_periods SET name = :name, start_date = :start_date, end_date = :end_date,
		active = :active, registration_open = :registration_open, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}

// SetActive marks the provided period as active and deactivates the rest
// in a single transaction, so no window with zero or two active periods
// is observable.
func (r *PeriodRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE academic_periods SET active = FALSE, updated_at = $1 WHERE active = TRUE AND id <> $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate other periods: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE academic_periods SET active = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate period: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}

// SetRegistrationOpen flips the registration flag for a period.
func (r *PeriodRepository) SetRegistrationOpen(ctx context.Context, id string, open bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE academic_periods SET registration_open = $2, updated_at = $3 WHERE id = $1`, id, open, time.Now().UTC()); err != nil {
		return fmt.Errorf("set registration open: %w", err)
	}
	return nil
}
