package monitoring

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Instrument records every request made by a resty client: completed
// round trips with their status, failed ones under StatusLabel.
func Instrument(client *resty.Client, metrics *Metrics) *resty.Client {
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		metrics.RecordAPIRequest(resp.Request.Method, StatusCode(resp.StatusCode()), resp.Time())
		return nil
	})
	client.OnError(func(req *resty.Request, _ error) {
		method := req.Method
		if method == "" {
			method = http.MethodGet
		}
		metrics.RecordAPIRequest(method, StatusLabel, time.Since(req.Time))
	})
	return client
}
