package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stationhouse/switchboard/internal/journal"
	"github.com/stationhouse/switchboard/internal/registry"
	"github.com/stationhouse/switchboard/internal/tracker"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/healthz", handleHealthz())

	router.GET("/api/agents", handleAgents(opts.Registry))
	router.GET("/api/deliveries", handleDeliveries(opts.DB))
	router.GET("/api/pending", handlePending(opts.DB, opts.Tracker))
	router.GET("/api/stats", handleStats(opts.DB))

	router.GET("/api/events", handleSSE(opts.DB))
}

func handleHealthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleAgents(reg *registry.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"agents": AgentList(reg)})
	}
}

func handleDeliveries(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		failures := c.Query("failures") == "1" || c.Query("failures") == "true"

		rows, err := DeliveryList(db, limit, failures)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deliveries": rows})
	}
}

func handlePending(db *gorm.DB, trk *tracker.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pending": PendingRequests(db, trk)})
	}
}

func handleStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := 24 * time.Hour
		if h, err := strconv.Atoi(c.Query("hours")); err == nil && h > 0 {
			window = time.Duration(h) * time.Hour
		}

		if db == nil {
			c.JSON(http.StatusOK, gin.H{"stats": journal.Stats{}})
			return
		}
		s, err := journal.Summarize(db, time.Now().Add(-window))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": s})
	}
}
