package domain

import "time"

// Deployment statuses. Pending and in_progress are non-terminal; success and
// failed are terminal and immutable once reached.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a status permits no further pipeline writes.
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}

// StackClassification labels the technologies detected in a repository.
// A nil field means the category could not be classified.
type StackClassification struct {
	Frontend *string `json:"frontend"`
	Backend  *string `json:"backend"`
	Database *string `json:"database"`
}

// ProvisionedResources holds provider-assigned identifiers for a deployment.
// DatabaseInstanceID is nil when the detected stack carries no database.
type ProvisionedResources struct {
	ComputeClusterID   string  `json:"compute_cluster_id"`
	StorageBucket      string  `json:"storage_bucket"`
	DistributionURL    string  `json:"distribution_url"`
	DatabaseInstanceID *string `json:"database_instance_id"`
	PublicAddress      string  `json:"public_address"`
}

// Endpoints are the public-facing URLs derived from provisioned resources.
type Endpoints struct {
	Frontend string `json:"frontend"`
	API      string `json:"api"`
	Admin    string `json:"admin"`
}

// CostEstimate is the monthly cost breakdown for provisioned resources.
type CostEstimate struct {
	MonthlyTotal float64            `json:"monthly_total"`
	Breakdown    map[string]float64 `json:"breakdown"`
}

// DeploymentLog is one entry of a deployment's append-only log stream.
type DeploymentLog struct {
	ID           int64     `json:"id"`
	DeploymentID string    `json:"deployment_id"`
	Level        string    `json:"level"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

// Log levels for DeploymentLog entries.
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Deployment is the durable record of a single deployment request.
type Deployment struct {
	ID            string                `json:"id"`
	OwnerID       string                `json:"owner_id"`
	AppName       string                `json:"app_name"`
	SourceURL     string                `json:"source_url"`
	CredentialRef string                `json:"credential_ref"`
	Region        string                `json:"region"`
	Status        string                `json:"status"`
	Stack         *StackClassification  `json:"stack,omitempty"`
	Resources     *ProvisionedResources `json:"resources,omitempty"`
	Endpoints     *Endpoints            `json:"endpoints,omitempty"`
	CostEstimate  *CostEstimate         `json:"cost_estimate,omitempty"`
	EnvVars       map[string]string     `json:"env_vars,omitempty"`
	Logs          []DeploymentLog       `json:"logs,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// DeploymentUpdate captures the fields a pipeline stage may persist. Nil
// fields are left untouched by the store.
type DeploymentUpdate struct {
	DeploymentID string
	Status       string
	Stack        *StackClassification
	Resources    *ProvisionedResources
	Endpoints    *Endpoints
	CostEstimate *CostEstimate
}
