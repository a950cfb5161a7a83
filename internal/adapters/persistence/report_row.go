package persistence

import (
	"math"
	"time"

	"github.com/gourmetlog/report-service/internal/domain"
)

// storedDateLayout is how a report date is written: RFC 3339 in UTC with
// millisecond precision.
const storedDateLayout = "2006-01-02T15:04:05.000Z"

// readDateLayouts are tried in order when reading the date column. The
// extra layouts cover rows written by SQLite's CURRENT_TIMESTAMP and by
// hand-entered bare dates.
var readDateLayouts = []string{
	storedDateLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// reportRow is the reports table. Tag codes are stored as REAL to match
// the rating column family; only integral in-domain values map back.
type reportRow struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	ItemName     string    `gorm:"column:item_name;not null"`
	ShopName     string    `gorm:"column:shop_name;not null"`
	Location     string    `gorm:"column:location;not null"`
	Rating       float64   `gorm:"column:rating;not null"`
	Spaciousness *float64  `gorm:"column:spaciousness"`
	Cleanliness  *float64  `gorm:"column:cleanliness"`
	Relaxation   *float64  `gorm:"column:relaxation"`
	ImageURL     *string   `gorm:"column:image_url"`
	Comment      *string   `gorm:"column:comment"`
	Date         *string   `gorm:"column:date"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime;index:idx_reports_created_at"`
}

func (reportRow) TableName() string { return "reports" }

func toRow(r *domain.Report) reportRow {
	in := r.Input()

	return reportRow{
		ID:           r.ID(),
		ItemName:     in.ItemName,
		ShopName:     in.ShopName,
		Location:     in.Location,
		Rating:       in.Rating,
		Spaciousness: codeToReal(in.Spaciousness),
		Cleanliness:  codeToReal(in.Cleanliness),
		Relaxation:   codeToReal(in.Relaxation),
		ImageURL:     in.ImageURL,
		Comment:      in.Comment,
		Date:         formatDate(in.Date),
	}
}

// toDomain rebuilds the entity. Out-of-domain tag codes and unreadable
// dates become absent; a bad rating fails the whole row.
func toDomain(row *reportRow) (*domain.Report, error) {
	return domain.ReconstructReport(row.ID, domain.ReportInput{
		ItemName:     row.ItemName,
		ShopName:     row.ShopName,
		Location:     row.Location,
		Rating:       row.Rating,
		Spaciousness: realToCode(row.Spaciousness, domain.Spaciousness.Valid),
		Cleanliness:  realToCode(row.Cleanliness, domain.Cleanliness.Valid),
		Relaxation:   realToCode(row.Relaxation, domain.Relaxation.Valid),
		ImageURL:     row.ImageURL,
		Comment:      row.Comment,
		Date:         parseDate(row.Date),
	})
}

func codeToReal[T ~int](code *T) *float64 {
	if code == nil {
		return nil
	}

	v := float64(*code)

	return &v
}

func realToCode[T ~int](v *float64, valid func(T) bool) *T {
	if v == nil || math.Trunc(*v) != *v || math.IsInf(*v, 0) {
		return nil
	}

	code := T(int(*v))
	if !valid(code) {
		return nil
	}

	return &code
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}

	s := t.UTC().Format(storedDateLayout)

	return &s
}

func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}

	for _, layout := range readDateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	return nil
}
