package api

import (
	"github.com/gin-gonic/gin"

	leadflow "github.com/leadflowhq/leadflow"
	"github.com/leadflowhq/leadflow/api/middleware"
	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/internal/apierror"
)

type Api struct {
	leadflow *leadflow.Leadflow
	router   *gin.Engine
}

// Router wires the HTTP surface. Webhook ingestion authenticates with its
// HMAC signature only; everything else is an operator endpoint behind the
// secret key when the server runs secure.
func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/webhooks/receive", a.ReceiveWebhook)

	conf, err := config.Fetch()
	operator := router.Group("/")
	if err == nil && conf.Server.Secure {
		operator.Use(middleware.SecretKeyAuthMiddleware())
	}

	operator.POST("/connections", a.CreateConnection)
	operator.GET("/connections/:id", a.GetConnection)
	operator.POST("/connections/:id/rotate-secret", a.RotateConnectionSecret)

	operator.POST("/agent/analyze", a.AnalyzeAccount)
	operator.POST("/agent/execute", a.ExecuteBatch)
	operator.GET("/agent/executions", a.GetExecutions)

	return a.router
}

func NewAPI(b *leadflow.Leadflow) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{leadflow: b, router: r}
}

// apiError maps service-layer errors onto HTTP statuses.
func apiError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}
