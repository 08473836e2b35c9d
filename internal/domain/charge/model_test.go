package charge

import (
	"testing"
	"time"

	"github.com/medbill/ledger/internal/types"
	"github.com/stretchr/testify/assert"
)

func days(ds []time.Time) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, types.FormatDay(d))
	}
	return out
}

func TestMissingDays(t *testing.T) {
	stay := &Stay{
		ID:        "adm_1",
		Kind:      types.StayKindInpatient,
		Subject:   types.Subject{PatientID: "pat_1", VisitID: "vis_1"},
		StartedAt: time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC),
	}
	asOf := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)

	t.Run("no prior charges catches up from the start", func(t *testing.T) {
		got := MissingDays(stay, asOf, nil, time.UTC)
		assert.Equal(t, []string{"2024-06-01", "2024-06-02", "2024-06-03", "2024-06-04"}, days(got))
	})

	t.Run("gaps are filled", func(t *testing.T) {
		charged := []time.Time{
			time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		}
		got := MissingDays(stay, asOf, charged, time.UTC)
		assert.Equal(t, []string{"2024-06-02", "2024-06-04"}, days(got))
	})

	t.Run("fully charged yields nothing", func(t *testing.T) {
		charged := MissingDays(stay, asOf, nil, time.UTC)
		assert.Empty(t, MissingDays(stay, asOf, charged, time.UTC))
	})

	t.Run("admission after as of yields nothing", func(t *testing.T) {
		early := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)
		assert.Empty(t, MissingDays(stay, early, nil, time.UTC))
	})

	t.Run("start day follows the billing timezone", func(t *testing.T) {
		late := &Stay{
			ID:        "adm_2",
			Kind:      types.StayKindInpatient,
			Subject:   types.Subject{PatientID: "pat_1"},
			StartedAt: time.Date(2024, 6, 3, 22, 0, 0, 0, time.UTC),
		}
		eat := time.FixedZone("EAT", 3*60*60)
		got := MissingDays(late, asOf, nil, eat)
		assert.Equal(t, []string{"2024-06-04"}, days(got))
	})
}

func TestStayValidate(t *testing.T) {
	valid := &Stay{
		ID:        "case_1",
		Kind:      types.StayKindMortuary,
		Subject:   types.Subject{DeceasedID: "dec_1"},
		StartedAt: time.Now(),
	}
	assert.NoError(t, valid.Validate())

	noStart := *valid
	noStart.StartedAt = time.Time{}
	assert.Error(t, noStart.Validate())

	badKind := *valid
	badKind.Kind = "OUTPATIENT"
	assert.Error(t, badKind.Validate())
}
