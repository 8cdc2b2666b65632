package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes the default prometheus registry. Individual packages
// register their own collectors via promauto.
func Handler() http.Handler {
	return promhttp.Handler()
}
