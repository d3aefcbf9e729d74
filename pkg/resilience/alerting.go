package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/documind/documind/pkg/logging"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity int

const (
	// SeverityInfo - informational alerts
	SeverityInfo AlertSeverity = iota
	// SeverityWarning - warning alerts that need attention
	SeverityWarning
	// SeverityError - error alerts that need immediate attention
	SeverityError
	// SeverityCritical - critical alerts that need urgent attention
	SeverityCritical
)

func (s AlertSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert represents an alert that needs to be sent
type Alert struct {
	ID          string                 `json:"id"`
	Severity    AlertSeverity          `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Source      string                 `json:"source"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AlertHandler defines the interface for handling alerts
type AlertHandler interface {
	HandleAlert(ctx context.Context, alert Alert) error
	Name() string
}

// AlertManager fans alerts out to registered handlers with per-source rate
// limiting
type AlertManager struct {
	handlers []AlertHandler
	mutex    sync.Mutex
	logger   *logging.Logger

	alertCounts   map[string]int
	lastReset     time.Time
	rateLimit     int
	resetInterval time.Duration
}

// NewAlertManager creates a new alert manager
func NewAlertManager() *AlertManager {
	return &AlertManager{
		handlers:      make([]AlertHandler, 0),
		logger:        logging.GetLogger(),
		alertCounts:   make(map[string]int),
		lastReset:     time.Now(),
		rateLimit:     100, // per source per reset interval
		resetInterval: time.Hour,
	}
}

// AddHandler adds an alert handler
func (am *AlertManager) AddHandler(handler AlertHandler) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.handlers = append(am.handlers, handler)
	am.logger.Info("Alert handler added", "handler", handler.Name())
}

// SendAlert sends an alert to all registered handlers
func (am *AlertManager) SendAlert(ctx context.Context, alert Alert) error {
	am.mutex.Lock()
	if !am.checkRateLimit(alert.Source) {
		am.mutex.Unlock()
		am.logger.Warn("Alert rate limit exceeded",
			"source", alert.Source,
			"title", alert.Title,
		)
		return fmt.Errorf("alert rate limit exceeded for source: %s", alert.Source)
	}
	handlers := make([]AlertHandler, len(am.handlers))
	copy(handlers, am.handlers)
	am.mutex.Unlock()

	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	var lastErr error
	successCount := 0
	for _, handler := range handlers {
		if err := handler.HandleAlert(ctx, alert); err != nil {
			am.logger.Error("Alert handler failed",
				"handler", handler.Name(),
				"alert_id", alert.ID,
				"error", err,
			)
			lastErr = err
		} else {
			successCount++
		}
	}

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("all alert handlers failed: %w", lastErr)
	}
	return nil
}

// checkRateLimit must be called with the mutex held
func (am *AlertManager) checkRateLimit(source string) bool {
	now := time.Now()
	if now.Sub(am.lastReset) >= am.resetInterval {
		am.alertCounts = make(map[string]int)
		am.lastReset = now
	}

	count := am.alertCounts[source]
	if count >= am.rateLimit {
		return false
	}
	am.alertCounts[source] = count + 1
	return true
}

// LoggingAlertHandler logs alerts to the application logger
type LoggingAlertHandler struct {
	logger *logging.Logger
}

// NewLoggingAlertHandler creates a new logging alert handler
func NewLoggingAlertHandler() *LoggingAlertHandler {
	return &LoggingAlertHandler{
		logger: logging.GetLogger(),
	}
}

// HandleAlert handles an alert by logging it
func (h *LoggingAlertHandler) HandleAlert(ctx context.Context, alert Alert) error {
	fields := []interface{}{
		"alert_id", alert.ID,
		"severity", alert.Severity.String(),
		"source", alert.Source,
		"description", alert.Description,
		"timestamp", alert.Timestamp,
	}
	for key, value := range alert.Metadata {
		fields = append(fields, fmt.Sprintf("meta_%s", key), value)
	}

	switch alert.Severity {
	case SeverityInfo:
		h.logger.Info("ALERT: "+alert.Title, fields...)
	case SeverityWarning:
		h.logger.Warn("ALERT: "+alert.Title, fields...)
	default:
		h.logger.Error("ALERT: "+alert.Title, fields...)
	}
	return nil
}

// Name returns the name of the handler
func (h *LoggingAlertHandler) Name() string {
	return "logging"
}

// ResilienceAlerter turns circuit-breaker state changes and bulkhead
// saturation into alerts. Install StateChangeHook as a breaker's OnStateChange
// callback, and call CheckBulkheads periodically with the executor's metrics.
type ResilienceAlerter struct {
	alertManager *AlertManager
	logger       *logging.Logger

	mutex    sync.Mutex
	reported map[string]int64 // bulkhead name -> rejections already alerted
}

// NewResilienceAlerter creates an alerter backed by the given manager
func NewResilienceAlerter(alertManager *AlertManager) *ResilienceAlerter {
	return &ResilienceAlerter{
		alertManager: alertManager,
		logger:       logging.GetLogger(),
		reported:     make(map[string]int64),
	}
}

// StateChangeHook is an OnStateChange callback that alerts on circuit
// transitions: opening is an error, recovery is informational
func (ra *ResilienceAlerter) StateChangeHook(name string, from, to CircuitState) {
	alert := Alert{
		Source:      name,
		Title:       "Circuit Breaker State Change",
		Description: fmt.Sprintf("circuit '%s' transitioned from %s to %s", name, from, to),
		Metadata: map[string]interface{}{
			"from": from.String(),
			"to":   to.String(),
		},
	}

	switch to {
	case StateOpen:
		alert.Severity = SeverityError
		alert.Title = "Circuit Breaker Opened"
	case StateClosed:
		alert.Severity = SeverityInfo
		alert.Title = "Circuit Breaker Recovered"
	default:
		alert.Severity = SeverityWarning
	}

	if err := ra.alertManager.SendAlert(context.Background(), alert); err != nil {
		ra.logger.Error("Failed to send circuit breaker alert",
			"circuit", name,
			"error", err,
		)
	}
}

// CheckBulkheads alerts once per batch of new rejections per bulkhead
func (ra *ResilienceAlerter) CheckBulkheads(ctx context.Context, metrics ExecutorMetrics) {
	for name, m := range metrics.Bulkheads {
		ra.mutex.Lock()
		alreadyReported := ra.reported[name]
		newRejections := m.Rejections - alreadyReported
		if newRejections > 0 {
			ra.reported[name] = m.Rejections
		}
		ra.mutex.Unlock()

		if newRejections <= 0 {
			continue
		}

		alert := Alert{
			Severity:    SeverityWarning,
			Source:      name,
			Title:       "Bulkhead Rejections",
			Description: fmt.Sprintf("bulkhead '%s' rejected %d new requests", name, newRejections),
			Metadata: map[string]interface{}{
				"active":           m.Active,
				"queued":           m.Queued,
				"total_rejections": m.Rejections,
			},
		}
		if err := ra.alertManager.SendAlert(ctx, alert); err != nil {
			ra.logger.Error("Failed to send bulkhead alert",
				"bulkhead", name,
				"error", err,
			)
		}
	}
}
