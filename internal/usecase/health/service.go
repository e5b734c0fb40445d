package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a provider failure; retrieval still works through the local fallback.
	Degraded Status = "degraded"
	// Unhealthy indicates the snapshot store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status       Status
	Checks       map[string]CheckResult
	IndexEntries int
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	embedding ProviderChecker
	llm       ProviderChecker
	index     IndexReporter
}

// New creates a Service. Any dependency except store can be nil.
func New(store StorePinger, embedding, llm ProviderChecker, index IndexReporter) *Service {
	return &Service{store: store, embedding: embedding, llm: llm, index: index}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.store.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("Storage health check failed", zap.Error(err))
		checks["storage"] = CheckError
		status = Unhealthy
	} else {
		checks["storage"] = CheckOK
	}

	for name, p := range map[string]ProviderChecker{"embedding": s.embedding, "llm": s.llm} {
		if p == nil {
			continue
		}
		if err := p.HealthCheck(ctx); err != nil {
			logger.FromContext(ctx).Warn("Provider health check failed",
				zap.String("component", name), zap.Error(err))
			checks[name] = CheckError
			if status == Healthy {
				status = Degraded
			}
			continue
		}
		checks[name] = CheckOK
	}

	r := Report{Status: status, Checks: checks}
	if s.index != nil {
		r.IndexEntries = s.index.Entries()
	}
	return r
}
