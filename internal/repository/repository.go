package repository

import (
	"context"
	"time"

	"github.com/launchdeck/launchdeck/internal/domain"
)

// DeploymentRepository persists deployment records. Read and delete
// operations are owner-scoped; pipeline writes are keyed by deployment id
// alone since only the orchestrator holds write access.
type DeploymentRepository interface {
	CreateDeployment(ctx context.Context, deployment *domain.Deployment) error
	// ClaimDeployment atomically moves a pending record to in_progress so
	// exactly one worker wins a duplicate job delivery. Returns
	// ErrNotPending when another worker already claimed or finished it.
	ClaimDeployment(ctx context.Context, deploymentID string) error
	UpdateDeployment(ctx context.Context, update domain.DeploymentUpdate) error
	GetDeployment(ctx context.Context, ownerID, deploymentID string) (*domain.Deployment, error)
	GetDeploymentAnyOwner(ctx context.Context, deploymentID string) (*domain.Deployment, error)
	ListDeployments(ctx context.Context, ownerID string) ([]domain.Deployment, error)
	DeleteDeployment(ctx context.Context, ownerID, deploymentID string) error
	ListDeploymentsWithStatus(ctx context.Context, status string) ([]domain.Deployment, error)
	ListDeploymentsWithStatusUpdatedBefore(ctx context.Context, status string, updatedBefore time.Time) ([]domain.Deployment, error)
}

// LogRepository appends and reads deployment log entries. Entries are
// append-only: nothing reorders, rewrites, or truncates them.
type LogRepository interface {
	AppendLog(ctx context.Context, entry domain.DeploymentLog) error
	ListLogs(ctx context.Context, deploymentID string) ([]domain.DeploymentLog, error)
}
