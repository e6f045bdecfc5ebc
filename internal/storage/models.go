package storage

import "time"

type RequestRecord struct {
	ID        int64     `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

type ProviderSummary struct {
	Provider string `json:"provider"`
	Total    int64  `json:"total"`
	Failed   int64  `json:"failed"`
}
