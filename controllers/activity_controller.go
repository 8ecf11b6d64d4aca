package controllers

import (
	"net/http"
	"time"

	"option-chain-analyzer/services"

	"github.com/gin-gonic/gin"
)

// ActivityController serves the daily session logs
type ActivityController struct {
	activityLogger *services.ActivityLogger
}

// NewActivityController creates a new activity controller
func NewActivityController(activityLogger *services.ActivityLogger) *ActivityController {
	return &ActivityController{
		activityLogger: activityLogger,
	}
}

// RegisterRoutes mounts the activity endpoints under rg
func (ac *ActivityController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/activity/current", ac.HandleGetCurrentActivity)
	rg.GET("/activity/logs", ac.HandleListActivityLogs)
	rg.GET("/activity/:date", ac.HandleGetActivityByDate)
}

// HandleGetCurrentActivity returns the current day's activity log
// GET /api/v1/activity/current
func (ac *ActivityController) HandleGetCurrentActivity(c *gin.Context) {
	log, err := ac.activityLogger.GetCurrentLog()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, log)
}

// HandleGetActivityByDate returns activity log for a specific date
// GET /api/v1/activity/:date
func (ac *ActivityController) HandleGetActivityByDate(c *gin.Context) {
	date := c.Param("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
		return
	}

	log, err := ac.activityLogger.GetLogForDate(date)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, log)
}

// HandleListActivityLogs returns list of available activity log dates
// GET /api/v1/activity/logs
func (ac *ActivityController) HandleListActivityLogs(c *gin.Context) {
	dates, err := ac.activityLogger.ListAvailableLogs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dates": dates,
		"count": len(dates),
	})
}
