package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/database"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/logger"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
)

// seedProblem is the JSON shape of one pool entry.
type seedProblem struct {
	TopicCategory   string  `json:"topic_category"`
	ProblemCategory string  `json:"problem_category"`
	Content         string  `json:"content"`
	AudioURL        *string `json:"audio_url"`
	HighGradeKit    bool    `json:"high_grade_kit"`
	GroupKey        *string `json:"group_key"`     // Problems sharing a key form a role-play group
	ProblemOrder    *int    `json:"problem_order"` // 1..3 within a group
}

func main() {
	var seedFile string
	flag.StringVar(&seedFile, "file", "seed/problems.json", "Path to the problem pool JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	raw, err := os.ReadFile(seedFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", seedFile).Msg("Failed to read seed file")
	}

	var seeds []seedProblem
	if err := json.Unmarshal(raw, &seeds); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse seed file")
	}

	fmt.Printf("=== Seeding %d Problems ===\n", len(seeds))

	// Problems sharing a group_key get the same generated group UUID.
	groupIDs := make(map[string]uuid.UUID)

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i, seed := range seeds {
		if !model.ProblemCategory(seed.ProblemCategory).Valid() {
			log.Fatal().Int("index", i).Str("problem_category", seed.ProblemCategory).Msg("Unknown problem category")
		}

		var groupID *uuid.UUID
		if seed.GroupKey != nil {
			id, ok := groupIDs[*seed.GroupKey]
			if !ok {
				id = uuid.New()
				groupIDs[*seed.GroupKey] = id
			}
			groupID = &id
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO problems
			   (id, topic_category, problem_category, content, audio_url, high_grade_kit, problem_group_id, problem_order)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), seed.TopicCategory, seed.ProblemCategory, seed.Content,
			seed.AudioURL, seed.HighGradeKit, groupID, seed.ProblemOrder,
		)
		if err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Failed to insert problem")
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to commit")
	}

	fmt.Printf("Done. Inserted %d problems (%d role-play groups).\n", inserted, len(groupIDs))
}
