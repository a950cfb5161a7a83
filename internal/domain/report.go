package domain

import (
	"math"
	"time"
)

const (
	// MinRating is the lowest rating a report may carry.
	MinRating = 1.0

	// MaxRating is the highest rating a report may carry.
	MaxRating = 5.0

	ratingMessage = "must be between 1 and 5 with 0.5 steps"
)

// IDGenerator supplies globally unique, opaque report identifiers.
type IDGenerator interface {
	NewID() string
}

// ReportInput carries the attributes of a report before it becomes an entity.
// Optional attributes are nil when absent.
type ReportInput struct {
	ItemName     string
	ShopName     string
	Location     string
	Rating       float64
	Spaciousness *Spaciousness
	Cleanliness  *Cleanliness
	Relaxation   *Relaxation
	ImageURL     *string
	Comment      *string
	Date         *time.Time
}

// Report is one submitted evaluation of an item at a shop.
// It is immutable: every field is fixed at construction and there are no setters.
type Report struct {
	id           string
	itemName     string
	shopName     string
	location     string
	rating       float64
	spaciousness *Spaciousness
	cleanliness  *Cleanliness
	relaxation   *Relaxation
	imageURL     *string
	comment      *string
	date         *time.Time
}

// NewReport creates a report for a fresh submission, drawing its identifier from ids.
func NewReport(ids IDGenerator, in ReportInput) (*Report, error) {
	return newReport(ids.NewID(), in)
}

// ReconstructReport rebuilds a report that already has an identifier, typically
// from a storage row. It applies exactly the same checks as NewReport, so a
// corrupted row fails instead of producing an invalid entity.
func ReconstructReport(id string, in ReportInput) (*Report, error) {
	return newReport(id, in)
}

func newReport(id string, in ReportInput) (*Report, error) {
	if err := ValidateRating("rating", in.Rating); err != nil {
		return nil, err
	}

	// Cleanliness and relaxation codes go through the rating rule as well.
	// Both valid codes (1 and 2) always pass it.
	if in.Cleanliness != nil {
		if err := ValidateRating("cleanliness", float64(*in.Cleanliness)); err != nil {
			return nil, err
		}
	}

	if in.Relaxation != nil {
		if err := ValidateRating("relaxation", float64(*in.Relaxation)); err != nil {
			return nil, err
		}
	}

	return &Report{
		id:           id,
		itemName:     in.ItemName,
		shopName:     in.ShopName,
		location:     in.Location,
		rating:       in.Rating,
		spaciousness: clone(in.Spaciousness),
		cleanliness:  clone(in.Cleanliness),
		relaxation:   clone(in.Relaxation),
		imageURL:     clone(in.ImageURL),
		comment:      clone(in.Comment),
		date:         clone(in.Date),
	}, nil
}

// ValidateRating reports whether r lies in [1,5] on a half step.
// NaN and infinities are rejected.
func ValidateRating(field string, r float64) error {
	if r < MinRating || r > MaxRating || !IsHalfStep(r) {
		return NewValidationErrorWithValue(field, ratingMessage, r)
	}

	return nil
}

// IsHalfStep reports whether r is exactly representable as a multiple of 0.5.
func IsHalfStep(r float64) bool {
	return math.Mod(r*2, 1) == 0
}

// ID returns the report identifier.
func (r *Report) ID() string { return r.id }

// ItemName returns the evaluated item.
func (r *Report) ItemName() string { return r.itemName }

// ShopName returns the shop the item was eaten at.
func (r *Report) ShopName() string { return r.shopName }

// Location returns where the shop is.
func (r *Report) Location() string { return r.location }

// Rating returns the half-step rating in [1,5].
func (r *Report) Rating() float64 { return r.rating }

// Spaciousness returns the spaciousness tag, if any.
func (r *Report) Spaciousness() (Spaciousness, bool) { return value(r.spaciousness) }

// Cleanliness returns the cleanliness tag, if any.
func (r *Report) Cleanliness() (Cleanliness, bool) { return value(r.cleanliness) }

// Relaxation returns the relaxation tag, if any.
func (r *Report) Relaxation() (Relaxation, bool) { return value(r.relaxation) }

// ImageURL returns the reference to the stored photo, if any.
func (r *Report) ImageURL() (string, bool) { return value(r.imageURL) }

// Comment returns the free-text comment, if any.
func (r *Report) Comment() (string, bool) { return value(r.comment) }

// Date returns the day the visit took place, if recorded.
func (r *Report) Date() (time.Time, bool) { return value(r.date) }

// Input returns a copy of the report's attributes, without the identifier.
func (r *Report) Input() ReportInput {
	return ReportInput{
		ItemName:     r.itemName,
		ShopName:     r.shopName,
		Location:     r.location,
		Rating:       r.rating,
		Spaciousness: clone(r.spaciousness),
		Cleanliness:  clone(r.cleanliness),
		Relaxation:   clone(r.relaxation),
		ImageURL:     clone(r.imageURL),
		Comment:      clone(r.comment),
		Date:         clone(r.date),
	}
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}

func value[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}

	return *p, true
}
