package dto

import (
	"strconv"
	"strings"
	"time"

	"github.com/gourmetlog/report-service/internal/app"
	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/ports"
)

// CompactDateLayout is how report dates are rendered to clients.
const CompactDateLayout = "20060102"

// CreateReportForm is the multipart form accepted by POST /api/v1/reports.
// Tags arrive as labels and are mapped to their numeric codes by ToInput.
// The photo is read separately from the "image" file part.
type CreateReportForm struct {
	ItemName     string `form:"itemName"     validate:"required,notempty"`
	ShopName     string `form:"shopName"     validate:"required,notempty"`
	Location     string `form:"location"     validate:"required,notempty"`
	Rating       string `form:"rating"       validate:"required,halfstep"`
	Spaciousness string `form:"spaciousness" validate:"omitempty,oneof=wide narrow"`
	Cleanliness  string `form:"cleanliness"  validate:"omitempty,oneof=clean dirty"`
	Relaxation   string `form:"relaxation"   validate:"omitempty,oneof=relaxed busy"`
	Comment      string `form:"comment"`
	Date         string `form:"date"         validate:"omitempty,reportdate"`
}

// ToInput converts a validated form into report attributes.
func (f *CreateReportForm) ToInput() (domain.ReportInput, error) {
	rating, err := strconv.ParseFloat(f.Rating, 64)
	if err != nil {
		return domain.ReportInput{}, domain.NewValidationErrorWithValue("rating", "must be a number", f.Rating)
	}

	in := domain.ReportInput{
		ItemName: f.ItemName,
		ShopName: f.ShopName,
		Location: f.Location,
		Rating:   rating,
	}

	if f.Spaciousness != "" {
		s, err := domain.ParseSpaciousness(f.Spaciousness)
		if err != nil {
			return domain.ReportInput{}, err
		}

		in.Spaciousness = &s
	}

	if f.Cleanliness != "" {
		c, err := domain.ParseCleanliness(f.Cleanliness)
		if err != nil {
			return domain.ReportInput{}, err
		}

		in.Cleanliness = &c
	}

	if f.Relaxation != "" {
		r, err := domain.ParseRelaxation(f.Relaxation)
		if err != nil {
			return domain.ReportInput{}, err
		}

		in.Relaxation = &r
	}

	if f.Comment != "" {
		comment := f.Comment
		in.Comment = &comment
	}

	if f.Date != "" {
		date, err := ParseReportDate(f.Date)
		if err != nil {
			return domain.ReportInput{}, domain.NewValidationErrorWithValue("date", err.Error(), f.Date)
		}

		in.Date = &date
	}

	return in, nil
}

// ParseReportDate accepts a calendar day (2024-05-17, read as UTC midnight)
// or a full RFC 3339 timestamp.
func ParseReportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	return time.Parse(time.RFC3339, s)
}

// ReportResponse is one report as served to clients. Tags are numeric codes
// and the date is compact (20240517). Absent attributes are null.
type ReportResponse struct {
	ID           string  `json:"id"`
	ItemName     string  `json:"itemName"`
	ShopName     string  `json:"shopName"`
	Location     string  `json:"location"`
	Rating       float64 `json:"rating"`
	Spaciousness *int    `json:"spaciousness"`
	Cleanliness  *int    `json:"cleanliness"`
	Relaxation   *int    `json:"relaxation"`
	ImageURL     *string `json:"imageUrl"`
	Comment      *string `json:"comment"`
	Date         *string `json:"date"`
}

// NewReportResponse renders a report entity.
func NewReportResponse(r *domain.Report) ReportResponse {
	resp := ReportResponse{
		ID:       r.ID(),
		ItemName: r.ItemName(),
		ShopName: r.ShopName(),
		Location: r.Location(),
		Rating:   r.Rating(),
	}

	if v, ok := r.Spaciousness(); ok {
		resp.Spaciousness = code(v)
	}

	if v, ok := r.Cleanliness(); ok {
		resp.Cleanliness = code(v)
	}

	if v, ok := r.Relaxation(); ok {
		resp.Relaxation = code(v)
	}

	if v, ok := r.ImageURL(); ok {
		resp.ImageURL = &v
	}

	if v, ok := r.Comment(); ok {
		resp.Comment = &v
	}

	if v, ok := r.Date(); ok {
		day := v.UTC().Format(CompactDateLayout)
		resp.Date = &day
	}

	return resp
}

// NewReportListResponse renders reports in order. An empty list renders as [].
func NewReportListResponse(reports []*domain.Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, NewReportResponse(r))
	}

	return out
}

func code[T ~int](v T) *int {
	n := int(v)
	return &n
}

// CreateReportResponse carries the identifier of a new report.
type CreateReportResponse struct {
	ID string `json:"id"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// SignInRequest is the body of POST /api/v1/auth/sign-in.
type SignInRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SignInResponse carries the issued bearer token.
type SignInResponse struct {
	Token string `json:"token"`
}

// SummaryResponse is served by GET /api/v1/reports/summary.
type SummaryResponse struct {
	Reports int64             `json:"reports"`
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// NewSummaryResponse renders an overview. Without health data the status is
// reported as "unknown".
func NewSummaryResponse(o *app.Overview) SummaryResponse {
	resp := SummaryResponse{Reports: o.Reports, Status: "unknown"}
	if o.Health == nil {
		return resp
	}

	resp.Status = string(o.Health.Status)
	resp.Checks = make(map[string]string, len(o.Health.Checks))

	for name, check := range o.Health.Checks {
		resp.Checks[name] = checkText(check)
	}

	return resp
}

func checkText(c *ports.CheckResult) string {
	if c.Message == "" {
		return string(c.Status)
	}

	return string(c.Status) + ": " + c.Message
}
