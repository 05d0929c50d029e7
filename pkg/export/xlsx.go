// Package export renders lead lists as XLSX downloads.
package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/models"
)

const sheetName = "Leads"

var headers = []string{
	"ID", "Email", "First Name", "Last Name", "Company", "Phone",
	"Address", "Property Type", "Estimated Value", "Status", "Created At",
}

// Service builds spreadsheet exports.
type Service struct {
	db *gorm.DB
}

// NewService creates the export service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Leads renders every lead (optionally filtered by status) into an XLSX
// workbook and returns its bytes.
func (s *Service) Leads(ctx context.Context, status string) ([]byte, error) {
	query := s.db.WithContext(ctx).Model(&models.Lead{}).Order("created_at ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var leads []models.Lead
	if err := query.Find(&leads).Error; err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}

	for row, lead := range leads {
		values := []any{
			lead.ID, lead.Email, lead.FirstName, lead.LastName, lead.Company,
			lead.Phone, lead.Address, lead.PropertyType, lead.EstimatedValue,
			lead.Status, lead.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename returns a dated download name, e.g. leads_2026-09-01.xlsx.
func Filename() string {
	return fmt.Sprintf("leads_%s.xlsx", time.Now().UTC().Format("2006-01-02"))
}
