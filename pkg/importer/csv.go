// Package importer parses lead CSV uploads with tolerant header matching.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jordanlanch/estatereach/pkg/models"
)

var ErrNoHeader = errors.New("csv file has no header row")
var ErrMissingColumns = errors.New("csv must contain email and first_name columns")

// columnAliases maps canonical lead fields to the header spellings seen
// in the wild. Headers are normalized (lowercased, separators stripped)
// before matching.
var columnAliases = map[string][]string{
	"email":           {"email", "emailaddress", "mail"},
	"first_name":      {"firstname", "first", "fname", "givenname"},
	"last_name":       {"lastname", "last", "lname", "surname", "familyname"},
	"company":         {"company", "organization", "organisation", "business"},
	"phone":           {"phone", "phonenumber", "mobile", "cell", "telephone", "tel"},
	"address":         {"address", "propertyaddress", "streetaddress", "street", "location"},
	"property_type":   {"propertytype", "type", "hometype"},
	"estimated_value": {"estimatedvalue", "value", "price", "homevalue", "estimate"},
	"notes":           {"notes", "note", "comments", "remarks"},
}

// normalizeHeader strips separators so "First Name", "first_name" and
// "first-name" all match.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\uFEFF") // Excel BOM
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, h)
}

// mapHeaders resolves each CSV column index to a canonical field name.
func mapHeaders(headers []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range headers {
		norm := normalizeHeader(h)
		for field, aliases := range columnAliases {
			if _, taken := cols[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if norm == alias {
					cols[field] = i
					break
				}
			}
		}
	}
	return cols
}

// Result holds the parsed leads and the per-row problems of one upload.
type Result struct {
	Leads  []models.Lead
	Errors []string
}

// Parse reads a CSV stream into lead records. Rows missing a usable email
// or first name are reported in Result.Errors by 1-based data row number
// and skipped; they never abort the parse. Emails are lowercased.
func Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := mapHeaders(headers)
	if _, ok := cols["email"]; !ok {
		return nil, ErrMissingColumns
	}
	if _, ok := cols["first_name"]; !ok {
		return nil, ErrMissingColumns
	}

	get := func(record []string, field string) string {
		idx, ok := cols[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	result := &Result{}
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", row, err))
			continue
		}

		email := strings.ToLower(get(record, "email"))
		firstName := get(record, "first_name")

		if email == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: missing email", row))
			continue
		}
		if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: invalid email %q", row, email))
			continue
		}
		if firstName == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: missing first name", row))
			continue
		}

		result.Leads = append(result.Leads, models.Lead{
			Email:          email,
			FirstName:      firstName,
			LastName:       get(record, "last_name"),
			Company:        get(record, "company"),
			Phone:          get(record, "phone"),
			Address:        get(record, "address"),
			PropertyType:   get(record, "property_type"),
			EstimatedValue: get(record, "estimated_value"),
			Notes:          get(record, "notes"),
			Status:         models.LeadStatusUploaded,
		})
	}

	return result, nil
}

// SampleCSV is the downloadable template matching the canonical headers.
func SampleCSV() string {
	return strings.Join([]string{
		"email,first_name,last_name,phone,address,property_type,estimated_value",
		"jane.doe@example.com,Jane,Doe,+15551234567,\"123 Main St, Austin, TX\",Single Family,\"$450,000\"",
		"john.smith@example.com,John,Smith,+15559876543,\"456 Oak Ave, Dallas, TX\",Condo,\"$300,000\"",
	}, "\n") + "\n"
}
