package logging

import (
	"fmt"
	"sync"
	"time"
)

// Metrics tracks directory queries, detector runs, and scoring work
type Metrics struct {
	StartTime     time.Time                   `json:"start_time"`
	EndTime       time.Time                   `json:"end_time"`
	Duration      string                      `json:"duration"`
	Queries       map[string]QueryMetrics     `json:"queries"`
	Techniques    map[string]TechniqueMetrics `json:"techniques"`
	Operations    map[string]OperationMetrics `json:"operations"`
	TotalQueries  int                         `json:"total_queries"`
	TotalSuccess  int                         `json:"total_success"`
	TotalFailures int                         `json:"total_failures"`
	mu            sync.RWMutex
}

// QueryMetrics tracks metrics for one directory search base
type QueryMetrics struct {
	Count       int      `json:"count"`
	Success     int      `json:"success"`
	Failures    int      `json:"failures"`
	SuccessRate float64  `json:"success_rate"`
	Errors      []string `json:"errors,omitempty"`
}

// TechniqueMetrics tracks metrics for one detector
type TechniqueMetrics struct {
	Duration       time.Duration `json:"duration"`
	ObjectsScanned int           `json:"objects_scanned"`
	Findings       int           `json:"findings"`
	Failed         bool          `json:"failed"`
	Error          string        `json:"error,omitempty"`
}

// OperationMetrics tracks metrics for high-level operations
type OperationMetrics struct {
	Duration       time.Duration `json:"duration"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	ItemsProcessed int           `json:"items_processed"`
	ItemsFound     int           `json:"items_found"`
}

var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance (singleton)
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			StartTime:  time.Now(),
			Queries:    make(map[string]QueryMetrics),
			Techniques: make(map[string]TechniqueMetrics),
			Operations: make(map[string]OperationMetrics),
		}
	})
	return globalMetrics
}

// RecordQuery records a directory search with success/failure
func (m *Metrics) RecordQuery(base string, success bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalQueries++
	if success {
		m.TotalSuccess++
	} else {
		m.TotalFailures++
	}

	metrics := m.Queries[base]
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
	m.Queries[base] = metrics
}

// RecordTechnique records one detector pass
func (m *Metrics) RecordTechnique(technique string, duration time.Duration, objectsScanned, findings int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tm := TechniqueMetrics{
		Duration:       duration,
		ObjectsScanned: objectsScanned,
		Findings:       findings,
	}
	if err != nil {
		tm.Failed = true
		tm.Error = err.Error()
	}
	m.Techniques[technique] = tm
}

// RecordOperation records a high-level operation
func (m *Metrics) RecordOperation(operationName string, duration time.Duration, success bool, itemsProcessed, itemsFound int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opMetrics := OperationMetrics{
		Duration:       duration,
		Success:        success,
		ItemsProcessed: itemsProcessed,
		ItemsFound:     itemsFound,
	}
	if err != nil {
		opMetrics.Error = err.Error()
	}
	m.Operations[operationName] = opMetrics
}

// Finalize stamps the end time and duration for reporting
func (m *Metrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = time.Now()
	m.Duration = fmt.Sprintf("%v", m.EndTime.Sub(m.StartTime).Round(time.Millisecond))
}
