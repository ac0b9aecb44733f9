package models

// HealthStatus is the body of a healthy GET /health.
type HealthStatus struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
	Config   map[string]string `json:"config,omitempty"`
}

// APIInfo is the body of GET /.
type APIInfo struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// ErrorResponse is the body of every failed backend call. Detail is the
// message clients surface to users.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // dev mode only
}
