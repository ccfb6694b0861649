package provision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/launchdeck/launchdeck/internal/domain"
)

// Config carries the inputs a backend needs to allocate infrastructure.
// DeploymentID doubles as the idempotency key: provisioning the same
// deployment twice must yield the same identifiers.
type Config struct {
	DeploymentID  string
	AppName       string
	Region        string
	CredentialRef string
	EnvVars       map[string]string
}

// Provisioner allocates infrastructure for a classified stack.
type Provisioner interface {
	Provision(ctx context.Context, cfg Config, stack domain.StackClassification) (domain.ProvisionedResources, error)
}

// TransientError marks a failure worth retrying (throttling, timeouts).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Simulator is the in-process provisioning backend. It allocates nothing
// real; identifiers derive deterministically from the deployment id so a
// retried call returns the same resource set.
type Simulator struct {
	logger *slog.Logger
	delay  time.Duration
}

// NewSimulator constructs a simulated backend. delay, when positive, mimics
// provider latency per allocated resource.
func NewSimulator(logger *slog.Logger, delay time.Duration) *Simulator {
	return &Simulator{logger: logger, delay: delay}
}

var _ Provisioner = (*Simulator)(nil)

// Provision allocates the simulated resource set. Compute and
// storage/distribution are always present; a database instance only when the
// stack classifies one.
func (s *Simulator) Provision(ctx context.Context, cfg Config, stack domain.StackClassification) (domain.ProvisionedResources, error) {
	if strings.TrimSpace(cfg.DeploymentID) == "" {
		return domain.ProvisionedResources{}, errors.New("provision: deployment id required")
	}
	app := slugify(cfg.AppName)
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	sfx := suffix(cfg.DeploymentID)

	steps := 3
	if stack.Database != nil {
		steps = 4
	}
	for i := 0; i < steps; i++ {
		if err := s.wait(ctx); err != nil {
			return domain.ProvisionedResources{}, err
		}
	}

	resources := domain.ProvisionedResources{
		ComputeClusterID: fmt.Sprintf("ecs-cluster-%s", sfx),
		StorageBucket:    fmt.Sprintf("%s-assets-%s", app, sfx),
		DistributionURL:  fmt.Sprintf("https://%s.cloudfront.net", sfx),
		PublicAddress:    fmt.Sprintf("%s-%s.elb.%s.amazonaws.com", app, sfx, region),
	}
	if stack.Database != nil {
		id := fmt.Sprintf("docdb-%s", sfx)
		resources.DatabaseInstanceID = &id
	}
	s.logger.Info("provisioned simulated resources",
		"deployment_id", cfg.DeploymentID,
		"cluster", resources.ComputeClusterID,
		"database", stack.Database != nil)
	return resources, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func suffix(deploymentID string) string {
	sum := sha256.Sum256([]byte(deploymentID))
	return hex.EncodeToString(sum[:])[:8]
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-', r == '.':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "app"
	}
	return slug
}

// DeriveEndpoints computes the public-facing URLs for a resource set.
func DeriveEndpoints(resources domain.ProvisionedResources) domain.Endpoints {
	return domain.Endpoints{
		Frontend: resources.DistributionURL,
		API:      fmt.Sprintf("https://%s/api", resources.PublicAddress),
		Admin:    fmt.Sprintf("https://%s/admin", resources.PublicAddress),
	}
}
