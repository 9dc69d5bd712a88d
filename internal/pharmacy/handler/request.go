package handler

import (
	"net/http"
	"time"

	"github.com/medflow/pharmacy-backend/pkg/actor"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
)

const dateLayout = "2006-01-02"

// decode reads and validates a JSON request body.
func decode(r *http.Request, v interface{}) error {
	if err := httputil.DecodeJSON(r, v); err != nil {
		return err
	}
	return httputil.Validate(v)
}

// performedBy is the ledger identity of the caller.
func performedBy(r *http.Request) string {
	return actor.FromContext(r.Context()).Identifier()
}

func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, errors.Validation(map[string]string{field: "must be a date in the format " + dateLayout})
	}
	return &t, nil
}
