package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

const SheetPolicies = "Policies"

// Columns in PolicyRecord JSON order, plus the source path.
var Headers = []string{
	"Document ID",
	"Insurer",
	"Product Type",
	"Policy Number",
	"Owner Name",
	"Start Date",
	"End Date",
	"Premium Monthly",
	"Premium Annual",
	"Deductible",
	"Coverage Limit",
	"Contact Email",
	"Contact Phone",
	"Contact Address",
	"Agent Name",
	"Agent Contact",
	"Policy Language",
	"Original Filename",
	"Document Type",
	"Extraction Confidence",
	"Needs Review",
	"Notes",
	"Coverage Details",
	"Policy Chapters",
	"Source Path",
}

// Service is a tiny façade over the policy repository that produces XLSX bytes.
type Service struct {
	policies repository.PolicyRepository
	logger   *slog.Logger
}

func NewService(policies repository.PolicyRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{policies: policies, logger: logger}
}

// ExportPoliciesXLSX returns a workbook with one row per stored policy
// matching filter.
func (s *Service) ExportPoliciesXLSX(ctx context.Context, filter repository.PolicyFilter) ([]byte, error) {
	start := time.Now()

	recs, err := s.policies.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("closing workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetPolicies); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(SheetPolicies)
	f.SetActiveSheet(activeIndex)

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetPolicies, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
		_ = f.SetCellStyle(SheetPolicies, "A1", last, style)
	}
	_ = f.SetPanes(SheetPolicies, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	row := 2
	for _, p := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetPolicies, cell, v)
		}
		for i, v := range rowValues(p) {
			write(i+1, v)
		}
		row++
	}

	_ = f.SetColWidth(SheetPolicies, "A", "A", 38) // document id
	_ = f.SetColWidth(SheetPolicies, "B", "E", 22)
	_ = f.SetColWidth(SheetPolicies, "F", "G", 12) // dates
	_ = f.SetColWidth(SheetPolicies, "H", "K", 14) // amounts
	_ = f.SetColWidth(SheetPolicies, "L", "P", 24)
	_ = f.SetColWidth(SheetPolicies, "V", "X", 48)
	_ = f.SetColWidth(SheetPolicies, "Y", "Y", 60) // path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("policies exported",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func rowValues(p *entity.StoredPolicy) []any {
	r := p.Record
	return []any{
		r.DocumentID,
		r.Insurer,
		r.ProductType,
		r.PolicyNumber,
		r.OwnerName,
		r.StartDate,
		r.EndDate,
		r.PremiumMonthly,
		r.PremiumAnnual,
		r.Deductible,
		r.CoverageLimit,
		r.ContactEmail,
		r.ContactPhone,
		r.ContactAddress,
		r.AgentName,
		r.AgentContact,
		r.PolicyLanguage,
		r.OriginalFilename,
		r.DocumentType,
		strconv.FormatFloat(r.ExtractionConfidence, 'f', 2, 64),
		yesNo(r.NeedsReview),
		truncate(r.Notes, 140),
		jsonOrEmpty(r.CoverageDetails),
		jsonOrEmpty(r.PolicyChapters),
		p.SourcePath,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func jsonOrEmpty[T any](v *T) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
