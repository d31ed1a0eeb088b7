package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/utils/pagination"
)

// ReportRepository stores moderation reports.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *ReportRepository) WithTx(tx *gorm.DB) *ReportRepository {
	return &ReportRepository{db: tx}
}

func (r *ReportRepository) Create(ctx context.Context, rep *db.Report) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *ReportRepository) Get(ctx context.Context, id uint64) (*db.Report, error) {
	var rep db.Report
	if err := r.db.WithContext(ctx).First(&rep, id).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns reports newest first, optionally filtered by status.
//
// Behavior:
//   - Empty status lists every report.
//   - Supports cursor-based pagination via paginationToken; the returned
//     token is nil on the last page.
//
// Example:
//
//	repo.List(ctx, db.ReportPending, nil, 20)
func (r *ReportRepository) List(
	ctx context.Context,
	status string,
	paginationToken *string,
	limit int,
) ([]db.Report, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).Model(&db.Report{}).Order("id DESC").Limit(limit + 1)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if cursor.LastID > 0 {
		query = query.Where("id < ?", cursor.LastID)
	}

	var reports []db.Report
	if err := query.Find(&reports).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(reports) > limit {
		token, _ := pagination.Encode(pagination.Cursor{LastID: reports[limit-1].ID})
		nextToken = &token
		reports = reports[:limit]
	}
	return reports, nextToken, nil
}

// Save writes a reviewed report back.
func (r *ReportRepository) Save(ctx context.Context, rep *db.Report) error {
	return r.db.WithContext(ctx).Save(rep).Error
}

// CountByStatus powers the ops stats endpoint.
func (r *ReportRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.Report{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
