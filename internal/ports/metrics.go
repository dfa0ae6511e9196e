package ports

import (
	"time"

	"futuresHook/internal/domain"
)

// Metrics records workflow observability signals.
type Metrics interface {
	ObserveRun(state domain.WorkflowState, code string, d time.Duration)
	IncOrder(kind domain.OrderKind, side domain.OrderSide, accepted bool)
	IncProtectiveRetry()
	IncNotification(phase domain.Phase, ok bool)
	IncCancelled(n int)
}

// NopMetrics drops everything.
type NopMetrics struct{}

func (NopMetrics) ObserveRun(domain.WorkflowState, string, time.Duration) {}
func (NopMetrics) IncOrder(domain.OrderKind, domain.OrderSide, bool)     {}
func (NopMetrics) IncProtectiveRetry()                                   {}
func (NopMetrics) IncNotification(domain.Phase, bool)                    {}
func (NopMetrics) IncCancelled(int)                                      {}
