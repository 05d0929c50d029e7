package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/testutil"
)

func TestLeads(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateLead(t, db, &models.Lead{
		Email:          "ann@example.com",
		FirstName:      "Ann",
		LastName:       "Lee",
		Address:        "1 Elm St",
		PropertyType:   "Condo",
		EstimatedValue: "$300,000",
	})
	testutil.CreateLead(t, db, &models.Lead{
		Email:     "bo@example.com",
		FirstName: "Bo",
		Status:    models.LeadStatusContacted,
	})

	svc := NewService(db)

	data, err := svc.Leads(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 leads
	assert.Equal(t, "Email", rows[0][1])
	assert.Equal(t, "ann@example.com", rows[1][1])
	assert.Equal(t, "Condo", rows[1][7])
}

func TestLeads_StatusFilter(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateLead(t, db, &models.Lead{Email: "a@example.com", FirstName: "A"})
	testutil.CreateLead(t, db, &models.Lead{
		Email: "b@example.com", FirstName: "B", Status: models.LeadStatusBooked,
	})

	svc := NewService(db)

	data, err := svc.Leads(context.Background(), models.LeadStatusBooked)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b@example.com", rows[1][1])
}

func TestFilename(t *testing.T) {
	assert.Regexp(t, `^leads_\d{4}-\d{2}-\d{2}\.xlsx$`, Filename())
}
