package provision

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/launchdeck/launchdeck/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullStack() domain.StackClassification {
	frontend, backend, database := "react", "nodejs", "mongodb"
	return domain.StackClassification{Frontend: &frontend, Backend: &backend, Database: &database}
}

func TestSimulatorAllocatesResources(t *testing.T) {
	sim := NewSimulator(discardLogger(), 0)
	cfg := Config{
		DeploymentID: "dep-1",
		AppName:      "Acme Shop",
		Region:       "eu-west-1",
	}
	resources, err := sim.Provision(context.Background(), cfg, fullStack())
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !strings.HasPrefix(resources.ComputeClusterID, "ecs-cluster-") {
		t.Fatalf("cluster id = %q", resources.ComputeClusterID)
	}
	if !strings.HasPrefix(resources.StorageBucket, "acme-shop-assets-") {
		t.Fatalf("storage bucket = %q", resources.StorageBucket)
	}
	if !strings.HasPrefix(resources.DistributionURL, "https://") || !strings.HasSuffix(resources.DistributionURL, ".cloudfront.net") {
		t.Fatalf("distribution url = %q", resources.DistributionURL)
	}
	if resources.DatabaseInstanceID == nil || !strings.HasPrefix(*resources.DatabaseInstanceID, "docdb-") {
		t.Fatalf("database instance = %v", resources.DatabaseInstanceID)
	}
	if !strings.Contains(resources.PublicAddress, ".elb.eu-west-1.amazonaws.com") {
		t.Fatalf("public address = %q", resources.PublicAddress)
	}
}

func TestSimulatorIsDeterministic(t *testing.T) {
	sim := NewSimulator(discardLogger(), 0)
	cfg := Config{DeploymentID: "dep-1", AppName: "shop"}
	first, err := sim.Provision(context.Background(), cfg, fullStack())
	if err != nil {
		t.Fatalf("first Provision: %v", err)
	}
	second, err := sim.Provision(context.Background(), cfg, fullStack())
	if err != nil {
		t.Fatalf("second Provision: %v", err)
	}
	if first.ComputeClusterID != second.ComputeClusterID ||
		first.StorageBucket != second.StorageBucket ||
		first.PublicAddress != second.PublicAddress {
		t.Fatalf("retried provisioning diverged: %+v vs %+v", first, second)
	}

	other, err := sim.Provision(context.Background(), Config{DeploymentID: "dep-2", AppName: "shop"}, fullStack())
	if err != nil {
		t.Fatalf("other Provision: %v", err)
	}
	if other.ComputeClusterID == first.ComputeClusterID {
		t.Fatal("distinct deployments must get distinct identifiers")
	}
}

func TestSimulatorSkipsDatabaseWithoutOne(t *testing.T) {
	sim := NewSimulator(discardLogger(), 0)
	frontend := "react"
	stack := domain.StackClassification{Frontend: &frontend}
	resources, err := sim.Provision(context.Background(), Config{DeploymentID: "dep-3", AppName: "site"}, stack)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if resources.DatabaseInstanceID != nil {
		t.Fatalf("database instance = %q, want nil", *resources.DatabaseInstanceID)
	}
}

func TestSimulatorRequiresDeploymentID(t *testing.T) {
	sim := NewSimulator(discardLogger(), 0)
	if _, err := sim.Provision(context.Background(), Config{AppName: "shop"}, fullStack()); err == nil {
		t.Fatal("expected error for missing deployment id")
	}
}

func TestSimulatorHonorsContextCancel(t *testing.T) {
	sim := NewSimulator(discardLogger(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Provision(ctx, Config{DeploymentID: "dep-4", AppName: "shop"}, fullStack()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDeriveEndpoints(t *testing.T) {
	endpoints := DeriveEndpoints(domain.ProvisionedResources{
		DistributionURL: "https://abcd1234.cloudfront.net",
		PublicAddress:   "shop-abcd1234.elb.us-east-1.amazonaws.com",
	})
	if endpoints.Frontend != "https://abcd1234.cloudfront.net" {
		t.Fatalf("frontend = %q", endpoints.Frontend)
	}
	if endpoints.API != "https://shop-abcd1234.elb.us-east-1.amazonaws.com/api" {
		t.Fatalf("api = %q", endpoints.API)
	}
	if endpoints.Admin != "https://shop-abcd1234.elb.us-east-1.amazonaws.com/admin" {
		t.Fatalf("admin = %q", endpoints.Admin)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Acme Shop", "acme-shop"},
		{"  my_app.v2  ", "my-app-v2"},
		{"---", "app"},
		{"", "app"},
		{"Sima!!!ple", "simaple"},
	}
	for _, tc := range cases {
		if got := slugify(tc.input); got != tc.want {
			t.Fatalf("slugify(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	inner := context.DeadlineExceeded
	if !IsTransient(&TransientError{Err: inner}) {
		t.Fatal("wrapped TransientError not recognized")
	}
	if IsTransient(inner) {
		t.Fatal("plain error misclassified as transient")
	}
}
