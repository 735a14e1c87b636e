package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/coverbridge/ichra-enrollment/models"
	"github.com/coverbridge/ichra-enrollment/utils"
	"github.com/shopspring/decimal"
)

// SeedIchraPlans inserts the canonical three-tier plan catalog. It is
// idempotent: if any plan rows already exist the catalog is left
// untouched. Must run before the API becomes reachable so handlers
// never observe an empty catalog.
func SeedIchraPlans(ctx context.Context, planRepo IchraPlanRepository) error {
	count, err := planRepo.Count(ctx, models.IchraPlanFilter{})
	if err != nil {
		return fmt.Errorf("failed to check plan catalog: %w", err)
	}
	if count > 0 {
		return nil
	}

	plans := []models.IchraPlan{
		{
			Name:          "Basic ICHRA",
			Description:   "Ideal for small businesses starting with ICHRA. Provides essential coverage for your employees.",
			MonthlyAmount: decimal.NewFromInt(300),
			AnnualAmount:  decimal.NewFromInt(3600),
			Features: models.StringList{
				"Fixed monthly allowance",
				"Simple administration",
				"Basic reporting",
				"Email support",
			},
			IsPopular: utils.ToPtr(false),
		},
		{
			Name:          "Standard ICHRA",
			Description:   "Our most popular plan. Comprehensive coverage with flexible options for medium-sized businesses.",
			MonthlyAmount: decimal.NewFromInt(500),
			AnnualAmount:  decimal.NewFromInt(6000),
			Features: models.StringList{
				"Customizable monthly allowance",
				"Employee class differentiation",
				"Detailed reporting",
				"Priority email and phone support",
				"Compliance assistance",
			},
			IsPopular: utils.ToPtr(true),
		},
		{
			Name:          "Premium ICHRA",
			Description:   "Enterprise-grade healthcare solution with maximum flexibility and dedicated support.",
			MonthlyAmount: decimal.NewFromInt(750),
			AnnualAmount:  decimal.NewFromInt(9000),
			Features: models.StringList{
				"Premium monthly allowance",
				"Advanced employee classes",
				"Comprehensive reporting dashboard",
				"Dedicated account manager",
				"Compliance guarantee",
				"Employee education resources",
			},
			IsPopular: utils.ToPtr(false),
		},
	}

	for i := range plans {
		if err := planRepo.Save(ctx, &plans[i]); err != nil {
			return fmt.Errorf("failed to seed plan %q: %w", plans[i].Name, err)
		}
	}

	log.Printf("Seeded ICHRA plan catalog with %d plans", len(plans))
	return nil
}
