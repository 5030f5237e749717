package api

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/dex-momentum-core/internal/hotcandidate"
	"github.com/rawblock/dex-momentum-core/internal/token"
)

// APIHandler serves read-only status over the live token universe, and
// exposes the signal stream over websocket. Grounded in the teacher's
// APIHandler{dbStore, btcClient, wsHub, ...} composition shape, narrowed to
// this engine's dependencies.
type APIHandler struct {
	universe *token.Universe
	hot      *hotcandidate.Tracker
	wsHub    *Hub
}

// SetupRouter builds the gin engine serving health, the signal websocket
// stream, and read-only token/universe introspection. Protected endpoints
// (currently none beyond the stream's own auth-gated nature) are wired for
// the eviction-override endpoint only, matching the teacher's pattern of
// gating the one state-mutating route behind AuthMiddleware+RateLimiter.
func SetupRouter(universe *token.Universe, hot *hotcandidate.Tracker, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		universe: universe,
		hot:      hot,
		wsHub:    wsHub,
	}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/tokens", handler.handleListTokens)
		pub.GET("/tokens/:mint", handler.handleGetToken)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(30, 5).Middleware())
	{
		protected.GET("/counters", handler.handleHotCounters)
	}

	return r
}

// handleHealth reports engine status for service discovery/liveness probes.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "operational",
		"engine":     "dex-momentum-core",
		"liveTokens": h.universe.Size(),
		"timestamp":  time.Now().UnixMilli(),
	})
}

// handleListTokens returns every live token's mint and basic 60s metrics.
func (h *APIHandler) handleListTokens(c *gin.Context) {
	nowMs := time.Now().UnixMilli()
	snapshot := h.universe.Snapshot()

	out := make([]gin.H, 0, len(snapshot))
	for _, st := range snapshot {
		m60 := st.Metrics60s(nowMs)
		out = append(out, gin.H{
			"mint":               st.Mint,
			"estimatedLiquidity": st.EstimatedLiquidity,
			"swapCount60s":       m60.SwapCount,
			"uniqueBuyers60s":    m60.UniqueBuyers,
		})
	}

	c.JSON(http.StatusOK, gin.H{"tokens": out, "count": len(out)})
}

// handleGetToken returns a single token's sliding-window metrics and
// Phase-1 hot-detection stats, if any.
func (h *APIHandler) handleGetToken(c *gin.Context) {
	mint := c.Param("mint")
	st, ok := h.universe.Get(mint)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or inactive mint"})
		return
	}

	nowMs := time.Now().UnixMilli()
	phase1, hasPhase1 := st.Phase1Stats()

	resp := gin.H{
		"mint":               st.Mint,
		"estimatedLiquidity": st.EstimatedLiquidity,
		"metrics5s":          st.Metrics5s(nowMs),
		"metrics15s":         st.Metrics15s(nowMs),
		"metrics60s":         st.Metrics60s(nowMs),
	}
	if hasPhase1 {
		resp["phase1Stats"] = phase1
	}

	c.JSON(http.StatusOK, resp)
}

// handleHotCounters returns and resets the hot-candidate tracker's readout
// counters. Protected since repeated polling resets accumulated state other
// consumers (dashboards, alerting) might also be reading.
func (h *APIHandler) handleHotCounters(c *gin.Context) {
	counters := h.hot.ReadCounters()
	c.JSON(http.StatusOK, gin.H{
		"candidatesSeen": counters.CandidatesSeen,
		"phase2Started":  counters.Phase2Started,
		"phase2Success":  counters.Phase2Success,
		"phase2Rejected": counters.Phase2Rejected,
		"cooldownSkips":  counters.CooldownSkips,
		"inflightSkips":  counters.InflightSkips,
	})
}
