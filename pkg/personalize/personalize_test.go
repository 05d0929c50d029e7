package personalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jordanlanch/estatereach/pkg/models"
)

func TestRender(t *testing.T) {
	lead := &models.Lead{
		ID:             42,
		Email:          "ann@example.com",
		FirstName:      "Ann",
		LastName:       "Lee",
		Phone:          "+15550001111",
		Address:        "1 Elm St",
		PropertyType:   "Condo",
		EstimatedValue: "$300,000",
	}

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "all supported tokens",
			text:     "Hi {{first_name}} {{last_name}}, about {{address}} ({{property_type}}, {{estimated_value}})",
			expected: "Hi Ann Lee, about 1 Elm St (Condo, $300,000)",
		},
		{
			name:     "full name and lead id",
			text:     "{{full_name}} #{{lead_id}} <{{email}}> {{phone}}",
			expected: "Ann Lee #42 <ann@example.com> +15550001111",
		},
		{
			name:     "unknown token left verbatim",
			text:     "Hello {{first_name}}, your {{discount_code}} awaits",
			expected: "Hello Ann, your {{discount_code}} awaits",
		},
		{
			name:     "no tokens",
			text:     "plain text",
			expected: "plain text",
		},
		{
			name:     "empty text",
			text:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Render(tt.text, lead))
		})
	}
}

func TestRender_MissingAttributes(t *testing.T) {
	lead := &models.Lead{ID: 7, Email: "bo@example.com", FirstName: "Bo"}

	got := Render("{{first_name}}|{{last_name}}|{{phone}}|{{address}}", lead)
	assert.Equal(t, "Bo|||", got)

	// full_name collapses to just the first name when last name is empty
	assert.Equal(t, "Bo", Render("{{full_name}}", lead))
}

func TestRender_NilLead(t *testing.T) {
	assert.Equal(t, "Hi {{first_name}}", Render("Hi {{first_name}}", nil))
}

func TestExtractPlaceholders(t *testing.T) {
	got := ExtractPlaceholders("Hi {{first_name}}, re {{address}}. Bye {{first_name}} {{custom}}")
	assert.Equal(t, []string{"first_name", "address", "custom"}, got)

	assert.Empty(t, ExtractPlaceholders("no tokens here"))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("first_name"))
	assert.True(t, IsSupported("estimated_value"))
	assert.False(t, IsSupported("discount_code"))
}
