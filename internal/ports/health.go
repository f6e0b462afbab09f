package ports

import (
	"context"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
)

type HealthChecker interface {
	Liveness(ctx context.Context) (*model.LivenessReport, error)
	Readiness(ctx context.Context) (*model.ReadinessReport, error)
	Health(ctx context.Context) (*model.HealthReport, error)
}

// Pinger is implemented by every dependency the health checker reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}
