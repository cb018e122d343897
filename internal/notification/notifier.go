// Package notification delivers signal alerts to external channels
// (webhooks, Telegram) when a stream turns to BUY or SELL.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"signal-engine/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel          `json:"level"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	Signal  *model.SignalUpdate `json:"signal,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	slog.Info("alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi sends every alert to all of its notifiers and combines their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Send(ctx, alert))
	}
	return err
}

// SignalAlerter remembers the last label of every stream and alerts when
// a known stream changes to BUY or SELL. The first observation of a
// stream only records it, so a restart does not replay every signal.
type SignalAlerter struct {
	notifier Notifier

	mu   sync.Mutex
	last map[string]model.Label
}

// NewSignalAlerter creates an alerter delivering through n.
func NewSignalAlerter(n Notifier) *SignalAlerter {
	return &SignalAlerter{notifier: n, last: make(map[string]model.Label)}
}

// Observe records u and sends an alert if its stream just turned to BUY
// or SELL. Delivery failures are logged, never returned.
func (a *SignalAlerter) Observe(ctx context.Context, u model.SignalUpdate) {
	key := u.Key()
	a.mu.Lock()
	prev, seen := a.last[key]
	a.last[key] = u.Signal
	a.mu.Unlock()

	if !seen || prev == u.Signal {
		return
	}
	if u.Signal != model.LabelBuy && u.Signal != model.LabelSell {
		return
	}

	alert := Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("%s %s (%s)", u.Signal, u.Symbol, u.Mode),
		Message: fmt.Sprintf("%s turned %s from %s at %.2f", u.Symbol, u.Signal, prev, u.Price),
		Signal:  &u,
	}
	if u.Signal == model.LabelSell {
		alert.Level = AlertWarning
	}
	if err := a.notifier.Send(ctx, alert); err != nil {
		slog.Warn("alert delivery failed", "key", key, "error", err)
	}
}
