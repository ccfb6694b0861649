package cost

import (
	"math"

	"github.com/launchdeck/launchdeck/internal/domain"
)

// Cost categories appearing in every estimate breakdown.
const (
	CategoryCompute      = "compute"
	CategoryStorage      = "storage"
	CategoryDistribution = "distribution"
	CategoryDatabase     = "database"
)

// Monthly charges in USD per provisioned resource category.
const (
	monthlyCompute      = 28.80
	monthlyStorage      = 2.30
	monthlyDistribution = 8.50
	monthlyDatabase     = 15.25
)

// Estimate derives the monthly cost breakdown from what was actually
// provisioned. Pure function: identical inputs yield identical output. The
// database category is zero when no database instance exists.
func Estimate(stack domain.StackClassification, resources domain.ProvisionedResources) domain.CostEstimate {
	breakdown := map[string]float64{
		CategoryCompute:      monthlyCompute,
		CategoryStorage:      monthlyStorage,
		CategoryDistribution: monthlyDistribution,
		CategoryDatabase:     0,
	}
	if resources.DatabaseInstanceID != nil {
		breakdown[CategoryDatabase] = monthlyDatabase
	}
	var total float64
	for _, amount := range breakdown {
		total += amount
	}
	return domain.CostEstimate{
		MonthlyTotal: round2(total),
		Breakdown:    breakdown,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
