package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Status is the dependency report returned by /health.
type Status struct {
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// OK reports whether every dependency answered.
func (s Status) OK() bool {
	return s.Postgres == "up" && s.Redis == "up"
}

// Check pings both stores with a short deadline.
func Check(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) Status {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := Status{Postgres: "up", Redis: "up"}
	if pool == nil || pool.Ping(ctx) != nil {
		st.Postgres = "down"
	}
	if rdb == nil || rdb.Ping(ctx).Err() != nil {
		st.Redis = "down"
	}
	return st
}
