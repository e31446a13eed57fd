package pagination_test

import (
	"testing"

	"github.com/cgast/embird/internal/common/pagination"
)

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	config := pagination.Config{
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	}

	tests := []struct {
		name      string
		params    pagination.Params
		wantError bool
	}{
		{
			name: "valid params",
			params: pagination.Params{
				Page:  1,
				Limit: 20,
			},
			wantError: false,
		},
		{
			name: "valid params with limit at max",
			params: pagination.Params{
				Page:  1,
				Limit: 100,
			},
			wantError: false,
		},
		{
			name: "valid params with limit at min",
			params: pagination.Params{
				Page:  1,
				Limit: 1,
			},
			wantError: false,
		},
		{
			name: "invalid page (zero)",
			params: pagination.Params{
				Page:  0,
				Limit: 20,
			},
			wantError: true,
		},
		{
			name: "invalid page (negative)",
			params: pagination.Params{
				Page:  -1,
				Limit: 20,
			},
			wantError: true,
		},
		{
			name: "invalid limit (zero)",
			params: pagination.Params{
				Page:  1,
				Limit: 0,
			},
			wantError: true,
		},
		{
			name: "invalid limit (negative)",
			params: pagination.Params{
				Page:  1,
				Limit: -10,
			},
			wantError: true,
		},
		{
			name: "invalid limit (exceeds max)",
			params: pagination.Params{
				Page:  1,
				Limit: 101,
			},
			wantError: true,
		},
		{
			name: "both page and limit invalid",
			params: pagination.Params{
				Page:  0,
				Limit: 0,
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate(config)

			if tt.wantError && err == nil {
				t.Errorf("Validate() error = nil, wantError = true")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Validate() error = %v, wantError = false", err)
			}
		})
	}
}
