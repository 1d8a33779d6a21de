// Package health decodes resolver health check responses.
package health

// Response mirrors the resolver's /health reply envelope.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Healthy reports whether the resolver answered with an ok status.
func (r *Response) Healthy() bool {
	return r.Status == "ok"
}
