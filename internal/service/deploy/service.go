package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/launchdeck/launchdeck/internal/cost"
	"github.com/launchdeck/launchdeck/internal/creds"
	"github.com/launchdeck/launchdeck/internal/detect"
	"github.com/launchdeck/launchdeck/internal/domain"
	"github.com/launchdeck/launchdeck/internal/metrics"
	"github.com/launchdeck/launchdeck/internal/provision"
	"github.com/launchdeck/launchdeck/internal/queue"
	"github.com/launchdeck/launchdeck/internal/repository"
	"github.com/launchdeck/launchdeck/internal/service/logs"
	"github.com/launchdeck/launchdeck/pkg/config"
)

// ErrInvalidInput marks a create request rejected before any record exists.
var ErrInvalidInput = errors.New("deploy: invalid input")

// ErrCredentialUnusable marks a credential reference that fails validation.
var ErrCredentialUnusable = errors.New("deploy: credential reference not usable")

// StackDetector classifies the repository behind a source URL. The bool
// result reports that live inspection failed and the fallback stack was used.
type StackDetector interface {
	Detect(ctx context.Context, sourceURL, token string) (domain.StackClassification, bool, error)
}

// CreateInput carries a deployment request across the create boundary.
type CreateInput struct {
	AppName       string `json:"app_name"`
	SourceURL     string `json:"source_url"`
	CredentialRef string `json:"credential_ref"`
	EnvText       string `json:"env_text"`
	Region        string `json:"region"`
}

// Service is the deployment orchestrator. It owns every write to a
// deployment record; the status operations (List/Get/Delete) are the only
// read surface and never block on pipeline progress.
type Service struct {
	deployments repository.DeploymentRepository
	logs        logs.Service
	detector    StackDetector
	provisioner provision.Provisioner
	validator   creds.Validator
	queue       queue.Queue
	logger      *slog.Logger
	cfg         config.APIConfig
	pipeline    *metrics.Pipeline
}

// New constructs the orchestrator.
func New(deployments repository.DeploymentRepository, logSvc logs.Service, detector StackDetector, provisioner provision.Provisioner, validator creds.Validator, q queue.Queue, logger *slog.Logger, cfg config.APIConfig, pipeline *metrics.Pipeline) Service {
	return Service{
		deployments: deployments,
		logs:        logSvc,
		detector:    detector,
		provisioner: provisioner,
		validator:   validator,
		queue:       q,
		logger:      logger,
		cfg:         cfg,
		pipeline:    pipeline,
	}
}

// Create validates the request, persists a pending record, and enqueues the
// pipeline job. It returns as soon as the record exists; all provisioning
// happens asynchronously.
func (s Service) Create(ctx context.Context, ownerID string, input CreateInput) (*domain.Deployment, error) {
	appName := strings.TrimSpace(input.AppName)
	sourceURL := strings.TrimSpace(input.SourceURL)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", ErrInvalidInput)
	}
	if appName == "" {
		return nil, fmt.Errorf("%w: app_name is required", ErrInvalidInput)
	}
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: source_url is required", ErrInvalidInput)
	}
	if _, err := detect.ParseSourceURL(sourceURL); err != nil {
		return nil, err
	}
	result, err := s.validator.Validate(ctx, input.CredentialRef)
	if err != nil {
		return nil, fmt.Errorf("validate credentials: %w", err)
	}
	if !result.Usable {
		return nil, fmt.Errorf("%w: missing capabilities: %s", ErrCredentialUnusable, strings.Join(result.Missing, ", "))
	}

	region := strings.TrimSpace(input.Region)
	if region == "" {
		region = s.cfg.DefaultRegion
	}
	now := time.Now().UTC()
	deployment := &domain.Deployment{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		AppName:       appName,
		SourceURL:     sourceURL,
		CredentialRef: strings.TrimSpace(input.CredentialRef),
		Region:        region,
		Status:        domain.StatusPending,
		EnvVars:       ParseEnvText(input.EnvText),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.deployments.CreateDeployment(ctx, deployment); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, deployment.ID); err != nil {
		// The pending record is the source of truth; startup recovery will
		// re-enqueue it if this process dies before the queue comes back.
		s.logger.Error("failed to enqueue pipeline job", "deployment_id", deployment.ID, "error", err)
	}
	s.logger.Info("deployment requested", "deployment_id", deployment.ID, "owner_id", ownerID, "app", appName)
	deployment.Logs = []domain.DeploymentLog{}
	return deployment, nil
}

// Run executes the pipeline state machine for one deployment. Every stage
// persists before the next begins, so a poller always sees the latest
// progress. A failure anywhere after Begin lands the record in failed with
// an error log entry; the record is never left in_progress.
func (s Service) Run(ctx context.Context, deploymentID string) (err error) {
	record, err := s.deployments.GetDeploymentAnyOwner(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted between enqueue and dequeue.
			s.logger.Info("pipeline job skipped, record gone", "deployment_id", deploymentID)
			return nil
		}
		return err
	}
	// The claim is the gate against duplicate deliveries: of two workers
	// handed the same job, only one swaps pending to in_progress.
	if err := s.deployments.ClaimDeployment(ctx, deploymentID); err != nil {
		if errors.Is(err, repository.ErrNotPending) || errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("pipeline job skipped, record already claimed",
				"deployment_id", deploymentID, "status", record.Status)
			return nil
		}
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, deploymentID, fmt.Sprintf("internal error: %v", r))
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	start := time.Now()
	if stageErr := s.runStages(ctx, record); stageErr != nil {
		s.fail(ctx, deploymentID, stageErr.Error())
		s.pipeline.RecordOutcome(domain.StatusFailed)
		return nil
	}
	s.pipeline.RecordOutcome(domain.StatusSuccess)
	s.logger.Info("pipeline completed", "deployment_id", deploymentID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s Service) runStages(ctx context.Context, record *domain.Deployment) error {
	// The record is already in_progress; the claim in Run performed the
	// Begin transition.
	s.appendInfo(ctx, record.ID, fmt.Sprintf("deployment of %s started", record.AppName))

	// Detect. Listing failures are absorbed inside the detector via the
	// fallback classification; an error here is unexpected and fatal.
	detectStart := time.Now()
	stack, usedFallback, err := s.detector.Detect(ctx, record.SourceURL, s.cfg.RepoAPIToken)
	if err != nil {
		return fmt.Errorf("stack detection: %w", err)
	}
	s.pipeline.RecordStage("detect", time.Since(detectStart))
	if err := s.transition(ctx, record.ID, domain.DeploymentUpdate{DeploymentID: record.ID, Stack: &stack}); err != nil {
		return fmt.Errorf("persist stack: %w", err)
	}
	if usedFallback {
		s.appendLog(ctx, record.ID, domain.LogLevelWarn, "repository inspection failed, assuming default stack")
	}
	s.appendInfo(ctx, record.ID, fmt.Sprintf("detected stack: frontend=%s backend=%s database=%s",
		label(stack.Frontend), label(stack.Backend), label(stack.Database)))

	// Provision. The only stage with unbounded external latency: bounded by
	// a deadline and retried on transient failures.
	provisionStart := time.Now()
	resources, err := s.provisionWithRetry(ctx, record, stack)
	if err != nil {
		return fmt.Errorf("provisioning failed: %w", err)
	}
	s.pipeline.RecordStage("provision", time.Since(provisionStart))
	endpoints := provision.DeriveEndpoints(resources)
	if err := s.transition(ctx, record.ID, domain.DeploymentUpdate{DeploymentID: record.ID, Resources: &resources, Endpoints: &endpoints}); err != nil {
		return fmt.Errorf("persist resources: %w", err)
	}
	s.appendInfo(ctx, record.ID, fmt.Sprintf("provisioned resources, public address %s", resources.PublicAddress))

	// Estimate. Pure computation, cannot fail under valid input.
	estimate := cost.Estimate(stack, resources)
	if err := s.transition(ctx, record.ID, domain.DeploymentUpdate{DeploymentID: record.ID, CostEstimate: &estimate}); err != nil {
		return fmt.Errorf("persist cost estimate: %w", err)
	}
	s.appendInfo(ctx, record.ID, fmt.Sprintf("estimated monthly cost $%.2f", estimate.MonthlyTotal))

	// Complete
	s.appendInfo(ctx, record.ID, "deployment completed successfully")
	if err := s.transition(ctx, record.ID, domain.DeploymentUpdate{DeploymentID: record.ID, Status: domain.StatusSuccess}); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	return nil
}

func (s Service) provisionWithRetry(ctx context.Context, record *domain.Deployment, stack domain.StackClassification) (domain.ProvisionedResources, error) {
	provisionCtx := ctx
	if s.cfg.ProvisionTimeout > 0 {
		var cancel context.CancelFunc
		provisionCtx, cancel = context.WithTimeout(ctx, s.cfg.ProvisionTimeout)
		defer cancel()
	}
	base := s.cfg.ProvisionRetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	retries := s.cfg.ProvisionMaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(base))

	cfg := provision.Config{
		DeploymentID:  record.ID,
		AppName:       record.AppName,
		Region:        record.Region,
		CredentialRef: record.CredentialRef,
		EnvVars:       record.EnvVars,
	}
	var resources domain.ProvisionedResources
	err := retry.Do(provisionCtx, backoff, func(ctx context.Context) error {
		allocated, provisionErr := s.provisioner.Provision(ctx, cfg, stack)
		if provisionErr != nil {
			if provision.IsTransient(provisionErr) {
				s.appendLog(ctx, record.ID, domain.LogLevelWarn,
					fmt.Sprintf("transient provisioning failure, retrying: %v", provisionErr))
				return retry.RetryableError(provisionErr)
			}
			return provisionErr
		}
		resources = allocated
		return nil
	})
	if err != nil {
		return domain.ProvisionedResources{}, err
	}
	return resources, nil
}

// fail records a terminal failure. It uses a detached context so a
// cancelled pipeline context cannot leave the record stuck in_progress.
func (s Service) fail(ctx context.Context, deploymentID, reason string) {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	// The status transition goes first: when the record is already
	// terminal the log stream stays untouched, so a finished deployment
	// never gains an error entry from a late failure path.
	if err := s.transition(failCtx, deploymentID, domain.DeploymentUpdate{DeploymentID: deploymentID, Status: domain.StatusFailed}); err != nil {
		if errors.Is(err, repository.ErrTerminalState) || errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("failure not recorded, record already settled",
				"deployment_id", deploymentID, "reason", reason)
			return
		}
		s.logger.Error("failed to mark deployment failed", "deployment_id", deploymentID, "error", err)
		return
	}
	s.appendLog(failCtx, deploymentID, domain.LogLevelError, reason)
	s.logger.Warn("deployment failed", "deployment_id", deploymentID, "reason", reason)
}

func (s Service) transition(ctx context.Context, deploymentID string, update domain.DeploymentUpdate) error {
	return s.deployments.UpdateDeployment(ctx, update)
}

func (s Service) appendInfo(ctx context.Context, deploymentID, message string) {
	s.appendLog(ctx, deploymentID, domain.LogLevelInfo, message)
}

func (s Service) appendLog(ctx context.Context, deploymentID, level, message string) {
	// Log append failures must not abort a stage; the structured logger
	// keeps the trace.
	_ = s.logs.Append(ctx, deploymentID, level, message)
}

// List returns an owner's deployments, newest first. Logs are omitted from
// the listing; Get returns them.
func (s Service) List(ctx context.Context, ownerID string) ([]domain.Deployment, error) {
	return s.deployments.ListDeployments(ctx, ownerID)
}

// Get returns one deployment with its embedded log stream.
func (s Service) Get(ctx context.Context, ownerID, deploymentID string) (*domain.Deployment, error) {
	record, err := s.deployments.GetDeployment(ctx, ownerID, deploymentID)
	if err != nil {
		return nil, err
	}
	entries, err := s.logs.List(ctx, deploymentID)
	if err != nil {
		return nil, err
	}
	record.Logs = entries
	return record, nil
}

// Delete hard-deletes a deployment record and its logs.
func (s Service) Delete(ctx context.Context, ownerID, deploymentID string) error {
	return s.deployments.DeleteDeployment(ctx, ownerID, deploymentID)
}

// RecoverPending re-enqueues records whose pipeline never started. Called
// once at startup so jobs orphaned by a crash are picked up again.
func (s Service) RecoverPending(ctx context.Context) error {
	pending, err := s.deployments.ListDeploymentsWithStatus(ctx, domain.StatusPending)
	if err != nil {
		return err
	}
	for _, record := range pending {
		if err := s.queue.Enqueue(ctx, record.ID); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		s.logger.Info("re-enqueued orphaned deployments", "count", len(pending))
	}
	return nil
}

// FailStale transitions records stuck in_progress beyond the TTL to failed.
// Covers pipelines killed mid-run by a crash, when the in-process safety
// net never got the chance to fire.
func (s Service) FailStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.StaleRunTTL)
	stale, err := s.deployments.ListDeploymentsWithStatusUpdatedBefore(ctx, domain.StatusInProgress, cutoff)
	if err != nil {
		return err
	}
	for _, record := range stale {
		s.fail(ctx, record.ID, fmt.Sprintf("pipeline stalled: no progress since %s", record.UpdatedAt.Format(time.RFC3339)))
		s.pipeline.RecordOutcome(domain.StatusFailed)
	}
	return nil
}

// RunJanitor periodically sweeps for stale runs until ctx is cancelled.
func (s Service) RunJanitor(ctx context.Context) {
	interval := s.cfg.JanitorInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.FailStale(ctx); err != nil {
				s.logger.Error("stale run sweep failed", "error", err)
			}
		}
	}
}

func label(value *string) string {
	if value == nil {
		return "none"
	}
	return *value
}
