package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"option-chain-analyzer/chain"
	"option-chain-analyzer/interfaces"
	"option-chain-analyzer/pricing"
	"option-chain-analyzer/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ChainController serves option chains and single-option pricing
type ChainController struct {
	chains  *services.ChainService
	prices  services.PriceSource
	storage interfaces.StorageService
	now     func() time.Time
	logger  *logrus.Logger
}

// NewChainController creates a new chain controller. storage may be nil.
func NewChainController(chains *services.ChainService, prices services.PriceSource, storage interfaces.StorageService) *ChainController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &ChainController{
		chains:  chains,
		prices:  prices,
		storage: storage,
		now:     time.Now,
		logger:  logger,
	}
}

// SetLogger replaces the default logger
func (cc *ChainController) SetLogger(logger *logrus.Logger) {
	cc.logger = logger
}

// RegisterRoutes mounts the chain endpoints under rg
func (cc *ChainController) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/chain/parameters", cc.HandleGetParameters)
	rg.PUT("/chain/parameters", cc.HandleUpdateParameters)
	rg.GET("/chain/:symbol", cc.HandleGetChain)
	rg.GET("/chain/:symbol/summary", cc.HandleGetSummary)
	rg.GET("/chain/:symbol/snapshot", cc.HandleGetSnapshot)
	rg.POST("/options/price", cc.HandlePriceOption)
}

// RowView is a chain row rounded for display. A type filter omits the other side.
type RowView struct {
	Strike     float64     `json:"strike"`
	CallPrice  *float64    `json:"call_price,omitempty"`
	PutPrice   *float64    `json:"put_price,omitempty"`
	CallGreeks *GreeksView `json:"call_greeks,omitempty"`
	PutGreeks  *GreeksView `json:"put_greeks,omitempty"`
	IsATM      bool        `json:"is_atm"`
}

// GreeksView is a Greeks set rounded for display
type GreeksView struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func greeksView(g pricing.GreeksResult) GreeksView {
	return GreeksView{
		Delta: round(g.Delta, 4),
		Gamma: round(g.Gamma, 6),
		Theta: round(g.Theta, 4),
		Vega:  round(g.Vega, 4),
		Rho:   round(g.Rho, 4),
	}
}

// rowView rounds r for display. side is "call", "put" or empty for both.
func rowView(r chain.Row, side string) RowView {
	v := RowView{
		Strike: round(r.Strike, 2),
		IsATM:  r.IsATM,
	}
	if side != "put" {
		price, greeks := round(r.CallPrice, 2), greeksView(r.CallGreeks)
		v.CallPrice, v.CallGreeks = &price, &greeks
	}
	if side != "call" {
		price, greeks := round(r.PutPrice, 2), greeksView(r.PutGreeks)
		v.PutPrice, v.PutGreeks = &price, &greeks
	}
	return v
}

// rowFilter narrows a chain using the query string
type rowFilter struct {
	deltaMin, deltaMax float64
	hasMin, hasMax     bool
	optionType         string
	atmOnly            bool
}

func parseRowFilter(c *gin.Context) (rowFilter, error) {
	var f rowFilter
	if s := c.Query("delta_min"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return f, errors.New("invalid delta_min")
		}
		f.deltaMin, f.hasMin = v, true
	}
	if s := c.Query("delta_max"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return f, errors.New("invalid delta_max")
		}
		f.deltaMax, f.hasMax = v, true
	}
	f.optionType = strings.ToLower(c.Query("type"))
	switch f.optionType {
	case "", "call", "put":
	default:
		return f, errors.New("invalid type, use call or put")
	}
	f.atmOnly = c.Query("atm_only") == "true"
	return f, nil
}

// keep applies the delta window to the side named by type, or to either side when unset.
// The side itself is projected by rowView.
func (f rowFilter) keep(r chain.Row) bool {
	if f.atmOnly && !r.IsATM {
		return false
	}

	inRange := func(delta float64) bool {
		d := math.Abs(delta)
		return (!f.hasMin || d >= f.deltaMin) && (!f.hasMax || d <= f.deltaMax)
	}

	switch f.optionType {
	case "call":
		return inRange(r.CallGreeks.Delta)
	case "put":
		return inRange(r.PutGreeks.Delta)
	}
	return inRange(r.CallGreeks.Delta) || inRange(r.PutGreeks.Delta)
}

// chainOverrides applies rate/vol/range/step/expiry query parameters to req.
// It reports whether any override was present.
func chainOverrides(c *gin.Context, req *chain.Request) (bool, error) {
	overridden := false
	floats := []struct {
		key string
		dst *float64
	}{
		{"rate", &req.RiskFreeRate},
		{"vol", &req.Volatility},
		{"range", &req.StrikeRange},
		{"step", &req.StrikeStep},
	}
	for _, f := range floats {
		s := c.Query(f.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return false, errors.New("invalid " + f.key)
		}
		*f.dst = v
		overridden = true
	}

	if s := c.Query("expiry"); s != "" {
		expiry, err := parseExpiry(s, req.Now)
		if err != nil {
			return false, err
		}
		req.Expiry = expiry
		overridden = true
	}
	return overridden, nil
}

// parseExpiry accepts YYYY-MM-DD, RFC3339 or "friday" for the next weekly expiry
func parseExpiry(s string, now time.Time) (time.Time, error) {
	if strings.EqualFold(s, "friday") {
		return chain.NextFriday(now), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, errors.New("invalid expiry date format, use YYYY-MM-DD")
	}
	return t, nil
}

// HandleGetChain returns the option chain for a symbol
// GET /api/v1/chain/:symbol
func (cc *ChainController) HandleGetChain(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	now := cc.now()

	filter, err := parseRowFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price := cc.prices.GetCurrentPrice(symbol)
	req := cc.chains.Request(price, now)
	overridden, err := chainOverrides(c, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		rows       chain.OptionChain
		summary    chain.Summary
		computedAt = now
	)
	snapshot, cachedSummary, ok := cc.chains.Latest(symbol)
	switch {
	case !overridden && ok:
		rows, summary, computedAt = snapshot.Rows, cachedSummary, snapshot.ComputedAt
		req.Expiry = snapshot.Expiry
		price = &snapshot.UnderlyingPrice
	case !overridden:
		snapshot, summary, err = cc.chains.Compute(symbol, now)
		if err == nil {
			rows = snapshot.Rows
			req.Expiry = snapshot.Expiry
			price = &snapshot.UnderlyingPrice
		}
	default:
		rows, err = chain.Build(req)
		summary = chain.Summarize(rows, price)
	}
	if err != nil {
		cc.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to build chain")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chain parameters", "details": err.Error()})
		return
	}

	if len(rows) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"symbol": symbol,
			"status": "waiting",
			"rows":   []RowView{},
		})
		return
	}

	views := make([]RowView, 0, len(rows))
	for _, r := range rows {
		if filter.keep(r) {
			views = append(views, rowView(r, filter.optionType))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":           symbol,
		"status":           "ok",
		"underlying_price": round(*price, 2),
		"expiry":           req.Expiry,
		"time_to_expiry":   chain.TimeToExpiry(req.Expiry, computedAt),
		"computed_at":      computedAt,
		"summary":          summary,
		"rows":             views,
		"count":            len(views),
	})
}

// HandleGetSummary returns the headline metrics of the latest chain
// GET /api/v1/chain/:symbol/summary
func (cc *ChainController) HandleGetSummary(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	_, summary, ok := cc.chains.Latest(symbol)
	if !ok {
		var err error
		_, summary, err = cc.chains.Compute(symbol, cc.now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute chain", "details": err.Error()})
			return
		}
	}

	if !summary.Ready {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "status": "waiting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":           symbol,
		"status":           "ok",
		"underlying_price": round(summary.UnderlyingPrice, 2),
		"atm_strike":       summary.ATMStrike,
		"atm_call_price":   round(summary.ATMCallPrice, 2),
		"atm_put_price":    round(summary.ATMPutPrice, 2),
		"atm_call_delta":   round(summary.ATMCallDelta, 4),
		"strikes":          summary.Strikes,
		"atm_count":        summary.ATMCount,
	})
}

// HandleGetSnapshot returns the latest persisted chain
// GET /api/v1/chain/:symbol/snapshot
func (cc *ChainController) HandleGetSnapshot(c *gin.Context) {
	if cc.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	snapshot, err := cc.storage.GetLatestChainSnapshot(symbol)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for " + symbol})
			return
		}
		cc.logger.WithError(err).Error("Failed to load chain snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot", "details": err.Error()})
		return
	}

	views := make([]RowView, len(snapshot.Rows))
	for i, r := range snapshot.Rows {
		views[i] = rowView(r, "")
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":           snapshot.Symbol,
		"underlying_price": snapshot.UnderlyingPrice,
		"expiry":           snapshot.Expiry,
		"risk_free_rate":   snapshot.RiskFreeRate,
		"volatility":       snapshot.Volatility,
		"strike_step":      snapshot.StrikeStep,
		"strikes":          snapshot.Rows.Strikes(),
		"computed_at":      snapshot.ComputedAt,
		"rows":             views,
	})
}

// PriceOptionRequest is the body of a single-option pricing request.
// Either TimeToExpiry (years) or Expiry (YYYY-MM-DD or RFC3339) must be given.
type PriceOptionRequest struct {
	UnderlyingPrice float64  `json:"underlying_price" binding:"required,gt=0"`
	Strike          float64  `json:"strike" binding:"required,gt=0"`
	TimeToExpiry    *float64 `json:"time_to_expiry"`
	Expiry          string   `json:"expiry"`
	RiskFreeRate    float64  `json:"risk_free_rate"`
	Volatility      float64  `json:"volatility"`
	OptionType      string   `json:"option_type" binding:"required"`
}

// HandlePriceOption prices one European option and returns its Greeks
// POST /api/v1/options/price
func (cc *ChainController) HandlePriceOption(c *gin.Context) {
	var req PriceOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	typ, err := pricing.ParseOptionType(req.OptionType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid option type", "details": err.Error()})
		return
	}

	now := cc.now()
	var T float64
	switch {
	case req.TimeToExpiry != nil:
		T = *req.TimeToExpiry
	case req.Expiry != "":
		expiry, err := parseExpiry(req.Expiry, now)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		T = chain.TimeToExpiry(expiry, now)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "time_to_expiry or expiry is required"})
		return
	}

	params := pricing.OptionParameters{
		UnderlyingPrice: req.UnderlyingPrice,
		Strike:          req.Strike,
		TimeToExpiry:    T,
		RiskFreeRate:    req.RiskFreeRate,
		Volatility:      req.Volatility,
		Type:            typ,
	}

	price, err := pricing.Price(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid option parameters", "details": err.Error()})
		return
	}
	greeks, err := pricing.Greeks(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid option parameters", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"price":      price,
		"greeks":     greeks,
		"parameters": params,
	})
}

// HandleGetParameters returns the inputs used for chain refreshes
// GET /api/v1/chain/parameters
func (cc *ChainController) HandleGetParameters(c *gin.Context) {
	c.JSON(http.StatusOK, cc.chains.Parameters())
}

// UpdateParametersRequest mirrors the dashboard sidebar. Omitted fields keep their value.
type UpdateParametersRequest struct {
	RiskFreeRate *float64 `json:"risk_free_rate" binding:"omitempty,gte=0,lte=1"`
	Volatility   *float64 `json:"volatility" binding:"omitempty,gt=0,lte=1"`
	StrikeRange  *float64 `json:"strike_range" binding:"omitempty,gt=0"`
	StrikeStep   *float64 `json:"strike_step" binding:"omitempty,gt=0"`
	Expiry       string   `json:"expiry"`
}

// HandleUpdateParameters changes the chain inputs at runtime
// PUT /api/v1/chain/parameters
func (cc *ChainController) HandleUpdateParameters(c *gin.Context) {
	var req UpdateParametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	update := services.Parameters{
		RiskFreeRate: req.RiskFreeRate,
		Volatility:   req.Volatility,
		StrikeRange:  req.StrikeRange,
		StrikeStep:   req.StrikeStep,
	}
	if req.Expiry != "" {
		expiry, err := parseExpiry(req.Expiry, cc.now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		update.Expiry = &expiry
	}

	params, err := cc.chains.UpdateParameters(update)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid parameters", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, params)
}
