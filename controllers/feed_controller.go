package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"option-chain-analyzer/interfaces"
	"option-chain-analyzer/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FeedController controls the price stream and exposes market data
type FeedController struct {
	streamer *services.DataStreamer
	feed     interfaces.PriceFeed
	storage  interfaces.StorageService
	symbols  []string

	// ctx outlives the request that starts a stream
	ctx    context.Context
	logger *logrus.Logger
}

// NewFeedController creates a new feed controller. symbols are streamed when a
// start request names none. storage may be nil.
func NewFeedController(ctx context.Context, streamer *services.DataStreamer, feed interfaces.PriceFeed, storage interfaces.StorageService, symbols []string) *FeedController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &FeedController{
		streamer: streamer,
		feed:     feed,
		storage:  storage,
		symbols:  symbols,
		ctx:      ctx,
		logger:   logger,
	}
}

// SetLogger replaces the default logger
func (fc *FeedController) SetLogger(logger *logrus.Logger) {
	fc.logger = logger
}

// RegisterRoutes mounts the feed and market endpoints under rg
func (fc *FeedController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/feed/start", fc.HandleStartFeed)
	rg.POST("/feed/stop", fc.HandleStopFeed)
	rg.GET("/feed/status", fc.HandleGetStatus)
	rg.GET("/market/symbols", fc.HandleListSymbols)
	rg.GET("/market/price/:symbol", fc.HandleGetPrice)
	rg.GET("/market/history/:symbol", fc.HandleGetHistory)
}

// StartFeedRequest optionally overrides the streamed symbols
type StartFeedRequest struct {
	Symbols []string `json:"symbols"`
}

// HandleStartFeed starts polling the configured price feed
// POST /api/v1/feed/start
func (fc *FeedController) HandleStartFeed(c *gin.Context) {
	var req StartFeedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"details": err.Error(),
			})
			return
		}
	}

	symbols := fc.symbols
	if len(req.Symbols) > 0 {
		symbols = make([]string, len(req.Symbols))
		for i, s := range req.Symbols {
			symbols[i] = strings.ToUpper(strings.TrimSpace(s))
		}
	}
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no symbols to stream"})
		return
	}

	if err := fc.streamer.Start(fc.ctx, symbols); err != nil {
		if errors.Is(err, services.ErrAlreadyStreaming) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start feed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Data streaming started",
		"source":  fc.streamer.Source(),
		"symbols": symbols,
	})
}

// HandleStopFeed stops the price stream
// POST /api/v1/feed/stop
func (fc *FeedController) HandleStopFeed(c *gin.Context) {
	fc.streamer.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Data streaming stopped"})
}

// HandleGetStatus reports whether the stream is running and the cached prices
// GET /api/v1/feed/status
func (fc *FeedController) HandleGetStatus(c *gin.Context) {
	symbols := fc.streamer.Symbols()
	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if p := fc.streamer.GetCurrentPrice(s); p != nil {
			prices[s] = *p
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"running": fc.streamer.Running(),
		"source":  fc.streamer.Source(),
		"symbols": symbols,
		"prices":  prices,
	})
}

// HandleListSymbols returns the symbols offered for the active source
// GET /api/v1/market/symbols
func (fc *FeedController) HandleListSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"source":  fc.feed.Name(),
		"symbols": fc.symbols,
	})
}

// HandleGetPrice returns the latest streamed price
// GET /api/v1/market/price/:symbol?live=true
func (fc *FeedController) HandleGetPrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	if c.Query("live") == "true" {
		price, err := fc.feed.GetCurrentPrice(c.Request.Context(), symbol)
		if err != nil {
			fc.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch live price")
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "Failed to fetch price",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price, "source": fc.feed.Name()})
		return
	}

	price := fc.streamer.GetCurrentPrice(symbol)
	if price == nil {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "status": "waiting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": *price, "source": fc.streamer.Source()})
}

// HandleGetHistory returns recent prices for a symbol.
// GET /api/v1/market/history/:symbol
// GET /api/v1/market/history/:symbol?stored=true&limit=500
// GET /api/v1/market/history/:symbol?timeframe=1Day&days=30
func (fc *FeedController) HandleGetHistory(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	if timeframe := c.Query("timeframe"); timeframe != "" {
		fc.handleBars(c, symbol, timeframe)
		return
	}

	if c.Query("stored") == "true" {
		if fc.storage == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "500"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		ticks, err := fc.storage.GetTicks(symbol, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to load ticks",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "ticks": ticks, "count": len(ticks)})
		return
	}

	history := fc.streamer.GetPriceHistory(symbol)
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "ticks": history, "count": len(history)})
}

func (fc *FeedController) handleBars(c *gin.Context, symbol, timeframe string) {
	hist, ok := fc.feed.(interfaces.HistoricalDataService)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": fc.feed.Name() + " feed does not provide bars"})
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
		return
	}

	bars, err := hist.GetHistoricalData(c.Request.Context(), symbol, timeframe, days)
	if err != nil {
		fc.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch bars")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch bars",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "timeframe": timeframe, "bars": bars, "count": len(bars)})
}
