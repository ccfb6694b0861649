package logs

import (
	"context"
	"time"

	"log/slog"

	"github.com/launchdeck/launchdeck/internal/domain"
	"github.com/launchdeck/launchdeck/internal/repository"
)

// Service handles a deployment's append-only log stream.
type Service struct {
	repo   repository.LogRepository
	logger *slog.Logger
}

// New constructs a log service.
func New(repo repository.LogRepository, logger *slog.Logger) Service {
	return Service{repo: repo, logger: logger}
}

// Append stores one log entry. Entries are never reordered or truncated;
// the id sequence assigned by the store fixes their order.
func (s Service) Append(ctx context.Context, deploymentID, level, message string) error {
	entry := domain.DeploymentLog{
		DeploymentID: deploymentID,
		Level:        level,
		Message:      message,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.logger.Warn("failed to append deployment log",
			"deployment_id", deploymentID, "level", level, "error", err)
		return err
	}
	return nil
}

// List returns a deployment's log entries in append order.
func (s Service) List(ctx context.Context, deploymentID string) ([]domain.DeploymentLog, error) {
	return s.repo.ListLogs(ctx, deploymentID)
}
