package health

import (
	"context"
	"net/http"
	"time"

	httputil "smartassist/pkg/http"
	"smartassist/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const readyTimeout = 2 * time.Second

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Checker pings one backing store.
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

type mongoChecker struct{ client *mongo.Client }

func MongoChecker(client *mongo.Client) Checker { return mongoChecker{client: client} }

func (c mongoChecker) Name() string { return "mongo" }

func (c mongoChecker) Ping(ctx context.Context) error { return c.client.Ping(ctx, nil) }

type redisChecker struct{ client redis.Cmdable }

func RedisChecker(client redis.Cmdable) Checker { return redisChecker{client: client} }

func (c redisChecker) Name() string { return "redis" }

func (c redisChecker) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

type HealthHandler struct {
	checkers []Checker
	log      *logger.Logger
}

func NewHealthHandler(log *logger.Logger, checkers ...Checker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		log:      log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

// Ready pings every configured store. The in-memory setup has none and is always ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ready", Checks: map[string]string{}}
	status := http.StatusOK

	for _, c := range h.checkers {
		if err := c.Ping(ctx); err != nil {
			h.log.Error("Readiness check failed", "dependency", c.Name(), "error", err, "path", r.URL.Path)
			resp.Checks[c.Name()] = "error"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name()] = "ok"
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
