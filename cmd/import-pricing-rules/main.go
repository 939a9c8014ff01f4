package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/config"
	applog "github.com/saha-club/bookingservice/internal/log"
	"github.com/saha-club/bookingservice/internal/pricing"
	"github.com/saha-club/bookingservice/internal/pricing/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	rulesPath := flag.String("rules", "", "path to a JSON file with pricing rules")
	seedDefaults := flag.Bool("seed-defaults", false, "import the default rule set")
	flag.Parse()

	if *rulesPath == "" && !*seedDefaults {
		log.Fatal("Usage: import-pricing-rules -rules <file.json> | -seed-defaults")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := applog.Init(cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer pool.Close()

	store, err := postgres.NewStoreWithPool(pool)
	if err != nil {
		log.Fatalf("Failed to create rule store: %v", err)
	}

	var rules []pricing.Rule
	if *seedDefaults {
		rules = defaultRules()
	} else {
		rules, err = readRulesFromFile(*rulesPath)
		if err != nil {
			log.Fatalf("Failed to read rules: %v", err)
		}
	}

	for _, rule := range rules {
		if err := store.Upsert(ctx, rule); err != nil {
			log.Fatalf("Failed to import rule %s: %v", rule.ID, err)
		}
		fmt.Printf("  imported %s (%s) priority=%d active=%v\n",
			rule.ID, rule.Name, rule.Priority, rule.Active)
	}
	fmt.Printf("Successfully imported %d pricing rules\n", len(rules))
}

func readRulesFromFile(path string) ([]pricing.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules []pricing.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule with empty id in %s", path)
		}
	}
	return rules, nil
}

// defaultRules is the facility's standing rule set: a surge on busy hours
// and a consolation discount for outdoor courts in the rain.
func defaultRules() []pricing.Rule {
	minOcc := 80
	maxSurge := 150.0
	minRainy := 30.0
	return []pricing.Rule{
		{
			ID:               "high-occupancy-surge",
			Name:             "High occupancy surge",
			Description:      "Raise prices 30% when at least 80% of courts are booked",
			Active:           true,
			Priority:         20,
			AllowCombination: true,
			Conditions: pricing.Conditions{
				MinOccupancy: &minOcc,
			},
			Action: pricing.Action{
				Type:     pricing.ActionPercentage,
				Value:    30,
				MaxPrice: &maxSurge,
			},
		},
		{
			ID:               "rainy-outdoor-discount",
			Name:             "Rainy day outdoor discount",
			Description:      "20% off outdoor courts while it rains",
			Active:           true,
			Priority:         10,
			AllowCombination: true,
			Conditions: pricing.Conditions{
				WeatherConditions: []string{"rainy"},
				ResourceTypes:     []domain.ResourceType{domain.ResourceOutdoor},
			},
			Action: pricing.Action{
				Type:     pricing.ActionPercentage,
				Value:    -20,
				MinPrice: &minRainy,
			},
		},
	}
}
