package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 5 * time.Second

// PoolStats is a point-in-time view of the connection pool, reported by
// the database health endpoint.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// CollectPoolStats snapshots the pool counters.
func CollectPoolStats(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		TotalConns:      s.TotalConns(),
		IdleConns:       s.IdleConns(),
		AcquiredConns:   s.AcquiredConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration().String(),
	}
}

type healthReport struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Pool   PoolStats `json:"pool"`
}

// HealthHandler reports database reachability plus pool statistics. A
// failed ping returns 503 so orchestration can rotate the instance out.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, healthReport{
				Status: "unhealthy",
				Error:  err.Error(),
				Pool:   CollectPoolStats(pool),
			})
		}
		return c.JSON(http.StatusOK, healthReport{
			Status: "healthy",
			Pool:   CollectPoolStats(pool),
		})
	}
}
