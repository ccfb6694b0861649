package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/launchdeck/launchdeck/internal/domain"
	"github.com/launchdeck/launchdeck/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.DeploymentRepository = (*Repository)(nil)
	_ repository.LogRepository        = (*Repository)(nil)
)

const deploymentColumns = `id, owner_id, app_name, source_url, credential_ref, region, status,
	stack, resources, endpoints, cost_estimate, env_vars, created_at, updated_at`

// CreateDeployment inserts a deployment record.
func (r *Repository) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	const query = `INSERT INTO deployments (id, owner_id, app_name, source_url, credential_ref, region, status,
			stack, resources, endpoints, cost_estimate, env_vars, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	envVars, err := jsonOrNil(deployment.EnvVars)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		deployment.ID,
		deployment.OwnerID,
		deployment.AppName,
		deployment.SourceURL,
		deployment.CredentialRef,
		deployment.Region,
		deployment.Status,
		nil,
		nil,
		nil,
		nil,
		envVars,
		deployment.CreatedAt,
		deployment.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrInvalidArgument
		}
		return err
	}
	return nil
}

// ClaimDeployment compare-and-swaps a pending record to in_progress. The
// WHERE clause makes the claim atomic: of two workers handed the same job,
// only one sees a row updated.
func (r *Repository) ClaimDeployment(ctx context.Context, deploymentID string) error {
	const query = `UPDATE deployments SET status = 'in_progress', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	cmdTag, err := r.pool.Exec(ctx, query, deploymentID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return repository.ErrInvalidArgument
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetDeploymentAnyOwner(ctx, deploymentID); err != nil {
			return err
		}
		return repository.ErrNotPending
	}
	return nil
}

// UpdateDeployment applies a pipeline stage write. Nil fields keep their
// stored value. Records in a terminal status are never touched; the WHERE
// clause is what enforces status monotonicity at the storage layer.
func (r *Repository) UpdateDeployment(ctx context.Context, update domain.DeploymentUpdate) error {
	const query = `UPDATE deployments
		SET status = COALESCE($2, status),
			stack = COALESCE($3, stack),
			resources = COALESCE($4, resources),
			endpoints = COALESCE($5, endpoints),
			cost_estimate = COALESCE($6, cost_estimate),
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('success', 'failed')`
	stack, err := jsonOrNil(update.Stack)
	if err != nil {
		return err
	}
	resources, err := jsonOrNil(update.Resources)
	if err != nil {
		return err
	}
	endpoints, err := jsonOrNil(update.Endpoints)
	if err != nil {
		return err
	}
	cost, err := jsonOrNil(update.CostEstimate)
	if err != nil {
		return err
	}
	cmdTag, err := r.pool.Exec(ctx, query,
		update.DeploymentID,
		emptyToNil(update.Status),
		stack,
		resources,
		endpoints,
		cost,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetDeploymentAnyOwner(ctx, update.DeploymentID); err != nil {
			return err
		}
		return repository.ErrTerminalState
	}
	return nil
}

// GetDeployment fetches a deployment scoped to its owner.
func (r *Repository) GetDeployment(ctx context.Context, ownerID, deploymentID string) (*domain.Deployment, error) {
	query := fmt.Sprintf(`SELECT %s FROM deployments WHERE id = $1 AND owner_id = $2`, deploymentColumns)
	return r.scanDeployment(r.pool.QueryRow(ctx, query, deploymentID, ownerID))
}

// GetDeploymentAnyOwner fetches a deployment by id alone. Pipeline internal.
func (r *Repository) GetDeploymentAnyOwner(ctx context.Context, deploymentID string) (*domain.Deployment, error) {
	query := fmt.Sprintf(`SELECT %s FROM deployments WHERE id = $1`, deploymentColumns)
	return r.scanDeployment(r.pool.QueryRow(ctx, query, deploymentID))
}

// ListDeployments returns an owner's deployments, newest first.
func (r *Repository) ListDeployments(ctx context.Context, ownerID string) ([]domain.Deployment, error) {
	query := fmt.Sprintf(`SELECT %s FROM deployments WHERE owner_id = $1 ORDER BY created_at DESC`, deploymentColumns)
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectDeployments(rows)
}

// DeleteDeployment hard-deletes a record scoped to its owner. Log entries go
// with it via ON DELETE CASCADE.
func (r *Repository) DeleteDeployment(ctx context.Context, ownerID, deploymentID string) error {
	const query = `DELETE FROM deployments WHERE id = $1 AND owner_id = $2`
	cmdTag, err := r.pool.Exec(ctx, query, deploymentID, ownerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return repository.ErrInvalidArgument
		}
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListDeploymentsWithStatus returns all records currently in the given status.
func (r *Repository) ListDeploymentsWithStatus(ctx context.Context, status string) ([]domain.Deployment, error) {
	query := fmt.Sprintf(`SELECT %s FROM deployments WHERE status = $1 ORDER BY created_at ASC`, deploymentColumns)
	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectDeployments(rows)
}

// ListDeploymentsWithStatusUpdatedBefore finds records with a matching status
// last touched before the cutoff.
func (r *Repository) ListDeploymentsWithStatusUpdatedBefore(ctx context.Context, status string, updatedBefore time.Time) ([]domain.Deployment, error) {
	query := fmt.Sprintf(`SELECT %s FROM deployments WHERE status = $1 AND updated_at < $2`, deploymentColumns)
	rows, err := r.pool.Query(ctx, query, status, updatedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collectDeployments(rows)
}

// AppendLog persists a log entry.
func (r *Repository) AppendLog(ctx context.Context, entry domain.DeploymentLog) error {
	const query = `INSERT INTO deployment_logs (deployment_id, level, message, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, entry.DeploymentID, entry.Level, entry.Message, entry.CreatedAt)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

// ListLogs returns a deployment's log entries in append order.
func (r *Repository) ListLogs(ctx context.Context, deploymentID string) ([]domain.DeploymentLog, error) {
	const query = `SELECT id, deployment_id, level, message, created_at
		FROM deployment_logs WHERE deployment_id = $1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.DeploymentLog, 0)
	for rows.Next() {
		var l domain.DeploymentLog
		if err := rows.Scan(&l.ID, &l.DeploymentID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanDeployment(row rowScanner) (*domain.Deployment, error) {
	var (
		d         domain.Deployment
		stack     []byte
		resources []byte
		endpoints []byte
		cost      []byte
		envVars   []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.AppName,
		&d.SourceURL,
		&d.CredentialRef,
		&d.Region,
		&d.Status,
		&stack,
		&resources,
		&endpoints,
		&cost,
		&envVars,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
			return nil, repository.ErrInvalidArgument
		}
		return nil, err
	}
	if err := unmarshalInto(stack, &d.Stack); err != nil {
		return nil, err
	}
	if err := unmarshalInto(resources, &d.Resources); err != nil {
		return nil, err
	}
	if err := unmarshalInto(endpoints, &d.Endpoints); err != nil {
		return nil, err
	}
	if err := unmarshalInto(cost, &d.CostEstimate); err != nil {
		return nil, err
	}
	if len(envVars) > 0 {
		if err := json.Unmarshal(envVars, &d.EnvVars); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func (r *Repository) collectDeployments(rows pgx.Rows) ([]domain.Deployment, error) {
	deployments := make([]domain.Deployment, 0)
	for rows.Next() {
		d, err := r.scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

func unmarshalInto[T any](raw []byte, target **T) error {
	if len(raw) == 0 {
		return nil
	}
	value := new(T)
	if err := json.Unmarshal(raw, value); err != nil {
		return err
	}
	*target = value
	return nil
}

func jsonOrNil(v any) (any, error) {
	if isNilish(v) {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func isNilish(v any) bool {
	switch value := v.(type) {
	case nil:
		return true
	case *domain.StackClassification:
		return value == nil
	case *domain.ProvisionedResources:
		return value == nil
	case *domain.Endpoints:
		return value == nil
	case *domain.CostEstimate:
		return value == nil
	case map[string]string:
		return value == nil
	}
	return false
}

func emptyToNil(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
