// internal/adapter/rabbitmq/metrics.go
package rabbitmq

import (
	"sync"
	"time"
)

// ConnectionMetrics tracks broker-level counters for a connection.
type ConnectionMetrics struct {
	mu                    sync.Mutex
	messagesPublished     int64
	messagesConsumed      int64
	messagesFailed        int64
	lastReconnectAttempt  time.Time
	reconnectAttempts     int64
	lastSuccessfulConnect time.Time
}

func NewConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{
		lastSuccessfulConnect: time.Now(),
	}
}

func (m *ConnectionMetrics) IncrementPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesPublished++
}

func (m *ConnectionMetrics) IncrementConsumed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesConsumed++
}

func (m *ConnectionMetrics) IncrementFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesFailed++
}

func (m *ConnectionMetrics) RecordReconnectAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReconnectAttempt = time.Now()
	m.reconnectAttempts++
}

func (m *ConnectionMetrics) RecordSuccessfulConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSuccessfulConnect = time.Now()
}

// GetMetrics returns current counters as a map.
func (m *ConnectionMetrics) GetMetrics() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"messages_published":      m.messagesPublished,
		"messages_consumed":       m.messagesConsumed,
		"messages_failed":         m.messagesFailed,
		"reconnect_attempts":      m.reconnectAttempts,
		"last_reconnect_attempt":  m.lastReconnectAttempt,
		"last_successful_connect": m.lastSuccessfulConnect,
		"uptime_seconds":          time.Since(m.lastSuccessfulConnect).Seconds(),
	}
}
