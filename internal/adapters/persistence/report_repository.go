// Package persistence stores reports in a relational database through gorm.
// It never logs and never retries: every failure is returned to the caller
// as a *domain.StorageError.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gourmetlog/report-service/internal/domain"
)

// newestFirst orders by insertion time with the id as a stable tie-break.
var newestFirst = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "created_at"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}}

// ReportRepository implements ports.ReportRepository.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a repository on db.
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Migrate creates or updates the reports table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&reportRow{}); err != nil {
		return domain.NewStorageError("migrate reports", err)
	}

	return nil
}

// Save inserts one row. A duplicate id surfaces as a StorageError wrapping
// a ConflictError.
func (r *ReportRepository) Save(ctx context.Context, report *domain.Report) error {
	row := toRow(report)

	err := r.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return nil
	}

	if isDuplicateKey(err) {
		return domain.NewStorageError("save report",
			domain.NewConflictErrorWithDetails("report", "already exists", report.ID()))
	}

	return domain.NewStorageError("save report", err)
}

// FindByID loads one report. found is false when no row matches.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, bool, error) {
	var rows []reportRow

	err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, false, domain.NewStorageError("find report", err)
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	report, err := toDomain(&rows[0])
	if err != nil {
		return nil, false, fmt.Errorf("reading report %q: %w", id, err)
	}

	return report, true, nil
}

// FindAll loads every report, newest first.
func (r *ReportRepository) FindAll(ctx context.Context) ([]*domain.Report, error) {
	var rows []reportRow

	err := r.db.WithContext(ctx).Clauses(newestFirst).Find(&rows).Error
	if err != nil {
		return nil, domain.NewStorageError("list reports", err)
	}

	reports := make([]*domain.Report, 0, len(rows))

	for i := range rows {
		report, err := toDomain(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("reading report %q: %w", rows[i].ID, err)
		}

		reports = append(reports, report)
	}

	return reports, nil
}

// Delete removes a row and reports whether one existed.
func (r *ReportRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&reportRow{})
	if result.Error != nil {
		return false, domain.NewStorageError("delete report", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// Count returns the number of stored reports.
func (r *ReportRepository) Count(ctx context.Context) (int64, error) {
	var n int64

	err := r.db.WithContext(ctx).Model(&reportRow{}).Count(&n).Error
	if err != nil {
		return 0, domain.NewStorageError("count reports", err)
	}

	return n, nil
}

// isDuplicateKey recognizes unique violations. gorm translates the pgx and
// cgo SQLite errors; the pure-Go SQLite driver only exposes a message.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
