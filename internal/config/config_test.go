package config

import (
	"testing"

	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, GetDefaultConfig().Validate())
}

func TestValidateBillingTimezone(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{name: "utc", timezone: "UTC"},
		{name: "iana zone", timezone: "Africa/Nairobi"},
		{name: "unknown zone", timezone: "Mars/Olympus_Mons", wantErr: true},
		{name: "misspelled zone", timezone: "Africa/Nairobbi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Billing.Timezone = tt.timezone

			err := cfg.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.timezone, cfg.Billing.Location().String())
				return
			}
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
			assert.Equal(t, tt.timezone, ierr.SafeDetails(err)["timezone"])
		})
	}
}
