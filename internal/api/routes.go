package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pegnet/pegfollow/internal/driver"
)

// resyncTrigger is implemented by *driver.Driver; kept as an interface so
// routes can be wired against a fake in tests.
type resyncTrigger interface {
	TriggerResync()
	GetProgress() driver.Progress
}

// Router holds the constructed dependencies SetupRouter wires together.
type Router struct {
	Dispatcher *Dispatcher
	Hub        *Hub
	Driver     resyncTrigger
	AuthToken  string
	Log        *logrus.Entry
}

// SetupRouter builds the gin.Engine exposing the JSON-RPC surface at
// POST /rpc, the websocket broadcast stream at GET /api/v1/stream, a public
// health check at GET /api/v1/health, and a small bearer-protected admin
// surface (progress, manual resync).
func SetupRouter(r Router) *gin.Engine {
	if r.Log == nil {
		r.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	engine := gin.Default()

	engine.Use(func(c *gin.Context) {
		c.Header("X-Request-Id", uuid.NewString())
		c.Next()
	})

	rpcLimiter := NewRateLimiter(120, 20)
	engine.POST("/rpc", rpcLimiter.RPCMiddleware(), r.Dispatcher.handleRPC)
	engine.GET("/api/v1/stream", r.Hub.Subscribe)
	engine.GET("/api/v1/health", r.handleHealth)

	admin := engine.Group("/api/v1/admin")
	admin.Use(AuthMiddleware(r.AuthToken))
	admin.Use(NewRateLimiter(10, 2).Middleware())
	{
		admin.GET("/progress", r.handleProgress)
		admin.POST("/resync", r.handleResync)
	}

	return engine
}

func (r Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "operational",
		"service": "pegfollow-node",
	})
}

func (r Router) handleProgress(c *gin.Context) {
	c.JSON(http.StatusOK, r.Driver.GetProgress())
}

func (r Router) handleResync(c *gin.Context) {
	r.Driver.TriggerResync()
	c.JSON(http.StatusAccepted, gin.H{"status": "resync triggered"})
}
