package handler

import (
	"context"
	"net/http"

	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
)

// HealthCheck reports a dependency's state; "status" is "up" or "down".
type HealthCheck func(ctx context.Context) map[string]string

// Health serves the service health. Any dependency reporting down turns the
// response into a 503 naming the failing dependencies.
func Health(service string, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":  "up",
			"service": service,
		}
		down := map[string]string{}
		for name, check := range checks {
			result := check(r.Context())
			health[name] = result
			if result["status"] != "up" {
				down[name] = "down"
				if msg := result["error"]; msg != "" {
					down[name] = msg
				}
			}
		}

		if len(down) > 0 {
			httputil.Error(w, errors.Unavailable(service+" is degraded").WithDetails(down))
			return
		}
		httputil.JSON(w, http.StatusOK, health)
	}
}
