package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"event-rewards-service/internal/config"
	"event-rewards-service/internal/domain"
)

// NewSeedCmd loads the demo catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo events and merchandise",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	events, merch := sampleCatalog()
	for _, event := range events {
		if err := upsertJSON(ctx, db, "events", event.ID, event); err != nil {
			return err
		}
	}
	for _, item := range merch {
		if err := upsertJSON(ctx, db, "merchandise", item.ID, item); err != nil {
			return err
		}
	}
	log.Printf("seeded %d events and %d merchandise items", len(events), len(merch))
	return nil
}

func upsertJSON(ctx context.Context, db *bun.DB, table, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", table, id, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, table)
	if _, err := db.ExecContext(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("insert %s %s: %w", table, id, err)
	}
	return nil
}

// sampleCatalog provides demo content; swap for real catalog data in production.
func sampleCatalog() ([]domain.Event, []domain.Merchandise) {
	events := []domain.Event{
		{
			ID:          "event-company-quiz",
			Title:       "Company History Quiz",
			Description: "Four quick questions about the company.",
			Type:        domain.EventTypeQuiz,
			Points:      50,
			IsActive:    true,
			Quiz: &domain.Quiz{
				PassThreshold:    50,
				TimeLimitSeconds: 300,
				Questions: []domain.Question{
					{
						ID: "q1", Text: "In which year was the company founded?", Order: 1,
						Answers: []domain.Answer{
							{ID: "q1a1", Text: "1999"},
							{ID: "q1a2", Text: "2006", Correct: true},
							{ID: "q1a3", Text: "2012"},
						},
					},
					{
						ID: "q2", Text: "How many retail chains does the group operate?", Order: 2,
						Answers: []domain.Answer{
							{ID: "q2a1", Text: "Two"},
							{ID: "q2a2", Text: "Three", Correct: true},
							{ID: "q2a3", Text: "Five"},
						},
					},
					{
						ID: "q3", Text: "What does the loyalty program reward?", Order: 3,
						Answers: []domain.Answer{
							{ID: "q3a1", Text: "Event participation", Correct: true},
							{ID: "q3a2", Text: "Social media posts"},
						},
					},
					{
						ID: "q4", Text: "Where is the head office located?", Order: 4,
						Answers: []domain.Answer{
							{ID: "q4a1", Text: "Moscow", Correct: true},
							{ID: "q4a2", Text: "Saint Petersburg"},
						},
					},
				},
			},
		},
		{
			ID:          "event-photo-challenge",
			Title:       "Booth Photo Challenge",
			Description: "Take a photo at our booth and show it to the staff.",
			Type:        domain.EventTypePhoto,
			Points:      20,
			IsActive:    true,
		},
		{
			ID:          "event-campus-quest",
			Title:       "Campus Quest",
			Description: "Visit all four stations around the venue.",
			Type:        domain.EventTypeQuest,
			Points:      30,
			IsActive:    true,
		},
	}

	merch := []domain.Merchandise{
		{ID: "merch-tshirt", Name: "Branded T-Shirt", Description: "100% cotton, quality print.", Type: domain.MerchTShirt, PointsCost: 100, StockQuantity: 50, IsAvailable: true},
		{ID: "merch-stickers", Name: "Sticker Pack", Description: "Sticker collection with company slogans.", Type: domain.MerchSticker, PointsCost: 30, StockQuantity: 200, IsAvailable: true},
		{ID: "merch-hoodie", Name: "Branded Hoodie", Description: "Warm hoodie for chilly weather.", Type: domain.MerchHoodie, PointsCost: 200, StockQuantity: 30, IsAvailable: true},
		{ID: "merch-cap", Name: "Embroidered Cap", Description: "Adjustable cap with the logo.", Type: domain.MerchCap, PointsCost: 80, StockQuantity: 40, IsAvailable: true},
		{ID: "merch-totebag", Name: "Eco Tote Bag", Description: "Recycled materials, roomy fit.", Type: domain.MerchBag, PointsCost: 60, StockQuantity: 100, IsAvailable: true},
	}
	return events, merch
}
