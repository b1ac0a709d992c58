package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sismepa/academic-api/internal/models"
)

// SectionRepository handles persistence for course sections and their
// time blocks.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository instantiates a section repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = "id, course_id, code, instructor_id, created_at, updated_at"

// FindByID loads a section with its time blocks.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE id = $1", sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	blocks, err := r.ListBlocks(ctx, id)
	if err != nil {
		return nil, err
	}
	section.Blocks = blocks
	return &section, nil
}

// ListByCourse returns all sections of a course with their blocks.
func (r *SectionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	query := fmt.Sprintf("SELECT %s FROM sections WHERE course_id = $1 ORDER BY code ASC", sectionColumns)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	for i := range sections {
		blocks, err := r.ListBlocks(ctx, sections[i].ID)
		if err != nil {
			return nil, err
		}
		sections[i].Blocks = blocks
	}
	return sections, nil
}

// ListBlocks returns the time blocks of a section ordered by day and start.
func (r *SectionRepository) ListBlocks(ctx context.Context, sectionID string) ([]models.TimeBlock, error) {
	const query = `SELECT id, section_id, day, start_minute, end_minute, room FROM time_blocks WHERE section_id = $1 ORDER BY day ASC, start_minute ASC`
	var blocks []models.TimeBlock
	if err := r.db.SelectContext(ctx, &blocks, query, sectionID); err != nil {
		return nil, fmt.Errorf("list time blocks: %w", err)
	}
	return blocks, nil
}

// ExistsByCode checks section code uniqueness within a course.
func (r *SectionRepository) ExistsByCode(ctx context.Context, courseID, code string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM sections WHERE course_id = $1 AND code = $2 LIMIT 1`, courseID, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check section code uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a section and its time blocks in one transaction.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create section tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, `INSERT INTO sections (id, course_id, code, instructor_id, created_at, updated_at)
		VALUES (:id, :course_id, :code, :instructor_id, :created_at, :updated_at)`, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}

	for i := range section.Blocks {
		block := &section.Blocks[i]
		if block.ID == "" {
			block.ID = uuid.NewString()
		}
		block.SectionID = section.ID
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO time_blocks (id, section_id, day, start_minute, end_minute, room)
			VALUES (:id, :section_id, :day, :start_minute, :end_minute, :room)`, block); err != nil {
			return fmt.Errorf("create time block: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create section tx: %w", err)
	}
	return nil
}

// AssignInstructor sets or replaces the instructor of a section.
func (r *SectionRepository) AssignInstructor(ctx context.Context, sectionID, instructorID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sections SET instructor_id = $2, updated_at = $3 WHERE id = $1`, sectionID, instructorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign instructor: %w", err)
	}
	return nil
}
