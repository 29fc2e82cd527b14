package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dealerhq/dealer-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Liveness: the process is up.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "dealer-ops-api",
		})
	})

	// Readiness: the backing store answers.
	r.GET("/ready", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	jobHandler := handler.NewJobHandler(deps)
	loanerHandler := handler.NewLoanerHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List annotated jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get one annotated job
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/transition - Move a job to a target status
			jobs.POST("/:job_id/transition", jobHandler.Transition)

			// POST /api/v1/jobs/:job_id/complete - Complete with an undo token
			jobs.POST("/:job_id/complete", jobHandler.Complete)

			// POST /api/v1/jobs/:job_id/uncomplete - Reverse a completion
			jobs.POST("/:job_id/uncomplete", jobHandler.Uncomplete)

			// POST /api/v1/jobs/:job_id/reschedule - Rewrite the scheduled window
			jobs.POST("/:job_id/reschedule", jobHandler.Reschedule)

			// POST /api/v1/jobs/bulk-transition - Per-item bulk status change
			jobs.POST("/bulk-transition", jobHandler.BulkTransition)
		}

		// POST /api/v1/undo - Fire the armed undo token
		v1.POST("/undo", jobHandler.Undo)

		loaners := v1.Group("/loaners")
		{
			// GET /api/v1/loaners - List annotated loaner assignments
			loaners.GET("", loanerHandler.ListLoaners)

			// GET /api/v1/loaners/needed - Jobs flagged for a loaner with none out
			loaners.GET("/needed", loanerHandler.JobsNeedingLoaner)

			// POST /api/v1/loaners/:assignment_id/return - Mark a loaner returned
			loaners.POST("/:assignment_id/return", loanerHandler.ReturnLoaner)
		}
	}

	return r
}
