package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/handler"
)

func up(context.Context) map[string]string { return map[string]string{"status": "up"} }

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]handler.HealthCheck
		wantCode int
		wantErr  string
		details  map[string]string
	}{
		{
			name:     "all up",
			checks:   map[string]handler.HealthCheck{"database": up, "rabbitmq": up},
			wantCode: http.StatusOK,
		},
		{
			name: "broker down",
			checks: map[string]handler.HealthCheck{
				"database": up,
				"rabbitmq": func(context.Context) map[string]string {
					return map[string]string{"status": "down", "error": "connection closed"}
				},
			},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "SERVICE_UNAVAILABLE",
			details:  map[string]string{"rabbitmq": "connection closed"},
		},
		{
			name: "missing status",
			checks: map[string]handler.HealthCheck{
				"redis": func(context.Context) map[string]string { return map[string]string{} },
			},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "SERVICE_UNAVAILABLE",
			details:  map[string]string{"redis": "down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.Health("pharmacy-service", tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantErr == "" {
				assert.True(t, body.Success)
				var data map[string]interface{}
				require.NoError(t, json.Unmarshal(body.Data, &data))
				assert.Equal(t, "up", data["status"])
				assert.Equal(t, "pharmacy-service", data["service"])
				return
			}
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantErr, body.Error.Code)
			assert.Equal(t, "pharmacy-service is degraded", body.Error.Message)
			assert.Equal(t, tt.details, body.Error.Details)
		})
	}
}
