package creds

import (
	"context"
	"regexp"
	"strings"
)

// Capabilities a credential reference must grant before a deployment may
// proceed.
var RequiredCapabilities = []string{"compute", "storage", "database", "network"}

// Result reports whether a credential reference is usable and which required
// capabilities are missing.
type Result struct {
	Usable  bool     `json:"usable"`
	Missing []string `json:"missing,omitempty"`
}

// Validator checks that a credential reference grants the required
// capability set. The real validator lives in the identity service; the
// orchestrator only consumes the binary usable outcome.
type Validator interface {
	Validate(ctx context.Context, credentialRef string) (Result, error)
}

var roleARNPattern = regexp.MustCompile(`^arn:aws:iam::\d{12}:role/[\w+=,.@-]+$`)

// StaticValidator accepts any well-formed IAM role ARN and treats it as
// granting the full capability set.
type StaticValidator struct{}

var _ Validator = StaticValidator{}

// Validate checks the credential reference shape.
func (StaticValidator) Validate(_ context.Context, credentialRef string) (Result, error) {
	if !roleARNPattern.MatchString(strings.TrimSpace(credentialRef)) {
		return Result{Usable: false, Missing: append([]string(nil), RequiredCapabilities...)}, nil
	}
	return Result{Usable: true}, nil
}
