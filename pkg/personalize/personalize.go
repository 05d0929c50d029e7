// Package personalize renders email and SMS templates against lead data.
//
// Substitution is a single pass over a closed set of {{placeholder}} tokens.
// Tokens outside the set are left in the text verbatim so a typo in a
// template is visible in the rendered output instead of silently vanishing.
package personalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jordanlanch/estatereach/pkg/models"
)

// Placeholders is the closed set of supported template tokens.
var Placeholders = []string{
	"first_name",
	"last_name",
	"full_name",
	"email",
	"phone",
	"address",
	"property_type",
	"estimated_value",
	"lead_id",
}

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes every supported placeholder in text with the lead's
// attributes. Missing attributes become the empty string.
func Render(text string, lead *models.Lead) string {
	if text == "" || lead == nil {
		return text
	}

	r := strings.NewReplacer(
		"{{first_name}}", lead.FirstName,
		"{{last_name}}", lead.LastName,
		"{{full_name}}", lead.FullName(),
		"{{email}}", lead.Email,
		"{{phone}}", lead.Phone,
		"{{address}}", lead.Address,
		"{{property_type}}", lead.PropertyType,
		"{{estimated_value}}", lead.EstimatedValue,
		"{{lead_id}}", strconv.FormatUint(uint64(lead.ID), 10),
	)
	return r.Replace(text)
}

// ExtractPlaceholders returns the distinct {{token}} names appearing in
// text, in order of first appearance. It reports every token, supported
// or not, so previews can flag unknown ones.
func ExtractPlaceholders(text string) []string {
	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// IsSupported reports whether name is in the supported placeholder set.
func IsSupported(name string) bool {
	for _, p := range Placeholders {
		if p == name {
			return true
		}
	}
	return false
}

// SampleLead returns a representative lead for template previews.
func SampleLead() *models.Lead {
	return &models.Lead{
		ID:             1,
		Email:          "jane.doe@example.com",
		FirstName:      "Jane",
		LastName:       "Doe",
		Phone:          "+15551234567",
		Address:        "123 Main St, Austin, TX",
		PropertyType:   "Single Family",
		EstimatedValue: "$450,000",
	}
}
