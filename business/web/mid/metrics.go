package mid

import (
	"context"
	"net/http"
	"strconv"

	"github.com/blockylab/blocky/foundation/metrics"
	"github.com/blockylab/blocky/foundation/web"
)

// Metrics counts served requests by route and status.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			status := 0
			if v, verr := web.GetValues(ctx); verr == nil {
				status = v.StatusCode
			}
			m.IncRequest(r.URL.Path, strconv.Itoa(status))

			return err
		}

		return h
	}

	return mw
}
