package logging

import (
	"encoding/json"
	"sync"
	"time"
)

// Metrics tracks provider API calls, retries, and per-operation timings for
// one discovery process
type Metrics struct {
	StartTime     time.Time                   `json:"start_time"`
	EndTime       time.Time                   `json:"end_time"`
	Duration      string                      `json:"duration"`
	APICalls      map[string]APICallMetrics   `json:"api_calls"`
	Operations    map[string]OperationMetrics `json:"operations"`
	TotalAPICalls int                         `json:"total_api_calls"`
	TotalSuccess  int                         `json:"total_success"`
	TotalFailures int                         `json:"total_failures"`
	TotalRetries  int                         `json:"total_retries"`
	mu            sync.RWMutex
}

// APICallMetrics tracks metrics for a specific API call
type APICallMetrics struct {
	Count       int      `json:"count"`
	Success     int      `json:"success"`
	Failures    int      `json:"failures"`
	Retries     int      `json:"retries"`
	SuccessRate float64  `json:"success_rate"`
	Errors      []string `json:"errors,omitempty"`
}

// OperationMetrics tracks metrics for high-level operations
type OperationMetrics struct {
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	ItemsFound int           `json:"items_found"`
}

var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance (singleton)
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			StartTime:  time.Now(),
			APICalls:   make(map[string]APICallMetrics),
			Operations: make(map[string]OperationMetrics),
		}
	})
	return globalMetrics
}

// RecordAPICall records an API call with success/failure
func (m *Metrics) RecordAPICall(apiName string, success bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalAPICalls++
	if success {
		m.TotalSuccess++
	} else {
		m.TotalFailures++
	}

	metrics := m.APICalls[apiName]
	metrics.Count++
	if success {
		metrics.Success++
	} else {
		metrics.Failures++
		if err != nil && len(metrics.Errors) < 10 {
			metrics.Errors = append(metrics.Errors, err.Error())
		}
	}
	if metrics.Count > 0 {
		metrics.SuccessRate = float64(metrics.Success) / float64(metrics.Count) * 100
	}
	m.APICalls[apiName] = metrics
}

// RecordRetry records one retry attempt against an API
func (m *Metrics) RecordRetry(apiName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRetries++
	metrics := m.APICalls[apiName]
	metrics.Retries++
	m.APICalls[apiName] = metrics
}

// RecordOperation records a high-level operation
func (m *Metrics) RecordOperation(operationName string, duration time.Duration, success bool, itemsFound int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opMetrics := OperationMetrics{
		Duration:   duration,
		Success:    success,
		ItemsFound: itemsFound,
	}
	if err != nil {
		opMetrics.Error = err.Error()
	}
	m.Operations[operationName] = opMetrics
}

// Summary finalizes the metrics and renders them as indented JSON
func (m *Metrics) Summary() string {
	m.mu.Lock()
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime).String()
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}
