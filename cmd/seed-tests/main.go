package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-testflow/internal/config"
	"github.com/stemsi/exstem-testflow/internal/database"
	"github.com/stemsi/exstem-testflow/internal/logger"
	"github.com/stemsi/exstem-testflow/internal/model"
	"github.com/stemsi/exstem-testflow/internal/repository"
	"github.com/stemsi/exstem-testflow/internal/service"
)

func main() {
	file := flag.String("file", "fixtures/tests.yaml", "YAML fixture with the tests to import")
	author := flag.String("author", "", "Email of the admin recorded as author")
	flag.Parse()

	if *author == "" {
		fmt.Println("Error: -author is required")
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open fixture")
	}
	defer f.Close()

	fx, err := service.ParseFixture(f)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Invalid fixture")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	users := repository.NewUserRepository(pool)
	admin, err := users.GetByEmail(ctx, *author)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Fatal().Str("email", *author).Msg("Author not found, create it with create-user first")
		}
		log.Fatal().Err(err).Msg("Failed to look up author")
	}
	if admin.Role != model.RoleAdmin {
		log.Fatal().Str("email", *author).Msg("Author must be an ADMIN")
	}

	testService := service.NewTestService(
		repository.NewTestRepository(pool),
		repository.NewQuestionRepository(pool),
		service.NewRedisDefinitionCache(rdb, cfg.TestCacheTTL),
		cfg.DefaultPassingScore,
		log,
	)

	fmt.Printf("=== Importing %d tests from %s ===\n", len(fx.Tests), *file)
	n, err := testService.Import(ctx, admin.ID, fx)
	if err != nil {
		log.Fatal().Err(err).Int("imported", n).Msg("Import stopped")
	}
	fmt.Printf("Imported %d tests\n", n)
}
