package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/boq-ai/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	if deps.MaxUploadSize > 0 {
		r.MaxMultipartMemory = min(deps.MaxUploadSize, 32<<20)
	}

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "boq-api-service"
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "BoQ-AI backend is running")
	})

	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health.HealthCheck(c.Request.Context()); err != nil {
				deps.Logger.Warn("Health check failed", slog.String("error", err.Error()))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	excelHandler := handler.NewExcelHandler(deps)

	// Polled by clients until the job is finished or failed
	r.GET("/status/:job_id", jobHandler.GetStatus)

	api := r.Group("/api")
	{
		api.GET("/hello", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Hello from backend"})
		})

		// POST /api/boq - upload a drawing and queue a takeoff
		api.POST("/boq", jobHandler.SubmitDrawing)

		// GET /api/jobs - list jobs with status filter and pagination
		api.GET("/jobs", jobHandler.ListJobs)

		// POST /api/generate_excel - render priced items as a workbook
		api.POST("/generate_excel", excelHandler.GenerateExcel)
	}

	return r
}
