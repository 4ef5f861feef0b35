package api

import (
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/checkout"
	"checkout-service/internal/models"
	"checkout-service/internal/payment"
	"checkout-service/internal/pricing"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const cartCacheTTL = 2 * time.Minute

// Handler contains HTTP handlers
type Handler struct {
	reconciler *checkout.Reconciler
	backend    checkout.Backend
	pricer     *pricing.Engine
	relay      *payment.CallbackRelay
	store      *store.Store
	cache      *redisclient.Client
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler. relay, store, and cache may
// be nil when the corresponding wiring is absent.
func NewHandler(reconciler *checkout.Reconciler, backend checkout.Backend, pricer *pricing.Engine, relay *payment.CallbackRelay, st *store.Store, cache *redisclient.Client) *Handler {
	return &Handler{
		reconciler: reconciler,
		backend:    backend,
		pricer:     pricer,
		relay:      relay,
		store:      st,
		cache:      cache,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout/quote", h.quote)
		v1.POST("/checkout", h.placeOrder)
		v1.POST("/checkout/:ref/gateway/callback", h.gatewayCallback)
		v1.GET("/reconciliations", h.listReconciliations)
		v1.POST("/reconciliations/:id/resolve", h.resolveReconciliation)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// quote returns the price breakdown for the session's current cart.
// The cart snapshot is cached briefly so repeated quote calls while
// the user reviews the order do not hammer the storefront backend.
func (h *Handler) quote(c *gin.Context) {
	session := sessionFromRequest(c)
	ctx := c.Request.Context()

	var cart models.CartSnapshot
	cached := false
	if h.cache != nil {
		if snap, ok, err := h.cache.GetCachedCart(ctx, session.SessionID); err == nil && ok {
			cart, cached = snap, true
		}
	}

	if !cached {
		snap, err := h.backend.GetCart(ctx, session)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "Failed to load cart",
				"details": err.Error(),
			})
			return
		}
		cart = snap

		if h.cache != nil {
			if err := h.cache.CacheCart(ctx, session.SessionID, cart, cartCacheTTL); err != nil {
				h.logger.Warn("Failed to cache cart snapshot", zap.Error(err))
			}
		}
	}

	if cart.Empty() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Cart is empty",
		})
		return
	}

	schedule := h.pricer.Schedule()
	c.JSON(http.StatusOK, gin.H{
		"breakdown": h.pricer.ComputeBreakdown(cart),
		"fees": gin.H{
			"gst_mode":     schedule.GSTMode,
			"shipping":     schedule.ShippingFlat,
			"platform_fee": schedule.PlatformFeeFlat,
		},
	})
}

// PlaceOrderRequest is the checkout request body
type PlaceOrderRequest struct {
	AddressID     string               `json:"address_id" binding:"required"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
}

// placeOrder runs one checkout attempt to a terminal state
func (h *Handler) placeOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	session := sessionFromRequest(c)
	ctx := c.Request.Context()

	if key := c.GetHeader("Idempotency-Key"); key != "" && h.cache != nil {
		seen, err := h.cache.CheckIdempotencyKey(ctx, key)
		if err != nil {
			h.logger.Warn("Idempotency check failed", zap.Error(err))
		} else if seen {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Duplicate checkout request",
			})
			return
		}
		if err := h.cache.SetIdempotencyKey(ctx, key, session.SessionID, 24*time.Hour); err != nil {
			h.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	result := h.reconciler.Place(ctx, session, req.AddressID, req.PaymentMethod)

	switch result.State {
	case checkout.StateConfirmed:
		c.JSON(http.StatusCreated, gin.H{
			"state":     result.State,
			"order_ref": result.OrderRef,
			"order_id":  result.OrderID,
			"breakdown": result.Breakdown,
		})

	case checkout.StateAlreadyInProgress:
		c.JSON(http.StatusConflict, gin.H{
			"state":   result.State,
			"message": result.Message,
		})

	case checkout.StateValidationFailed:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"state":         result.State,
			"missing_field": result.MissingField,
			"message":       result.Message,
		})

	case checkout.StatePaymentCancelled:
		// User dismissal is not an error; the cart is untouched and the
		// client may retry immediately.
		c.JSON(http.StatusOK, gin.H{
			"state":     result.State,
			"order_ref": result.OrderRef,
			"message":   result.Message,
		})

	case checkout.StatePaymentFailed:
		c.JSON(http.StatusPaymentRequired, gin.H{
			"state":     result.State,
			"order_ref": result.OrderRef,
			"message":   result.Message,
		})

	case checkout.StateOrderCreationFailed:
		resp := gin.H{
			"state":     result.State,
			"order_ref": result.OrderRef,
			"message":   result.Message,
		}
		if result.CaseID != 0 {
			// The user has been charged. Surface the support case, never
			// a generic failure.
			resp["reconciliation_case_id"] = result.CaseID
			resp["support_required"] = true
		}
		c.JSON(http.StatusBadGateway, resp)

	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"state": result.State,
		})
	}
}

// GatewayCallbackRequest is the front-channel completion payload
type GatewayCallbackRequest struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
	Dismissed bool   `json:"dismissed"`
	Reason    string `json:"reason"`
}

// gatewayCallback feeds a front-channel gateway completion to the
// adapter waiting on the order ref.
func (h *Handler) gatewayCallback(c *gin.Context) {
	var req GatewayCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	orderRef := c.Param("ref")
	delivered := h.relay != nil && h.relay.Resolve(orderRef, payment.Completion{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
		Dismissed: req.Dismissed,
		Reason:    req.Reason,
	})

	if !delivered {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No pending checkout for this order reference",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// listReconciliations lists open reconciliation cases for support
func (h *Handler) listReconciliations(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Case store not configured"})
		return
	}

	cases, err := h.store.ListOpenCases(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list reconciliation cases",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// resolveReconciliation marks a reconciliation case resolved
func (h *Handler) resolveReconciliation(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Case store not configured"})
		return
	}

	idStr := c.Param("id")
	caseID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid case ID",
		})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.ResolveCase(ctx, caseID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Case not found or already resolved",
			"details": err.Error(),
		})
		return
	}

	if open, err := h.store.CountOpenCases(ctx); err == nil {
		util.OpenReconciliationCases.Set(float64(open))
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// sessionFromRequest builds the session context from request headers.
// The bearer token is forwarded to the storefront backend untouched.
func sessionFromRequest(c *gin.Context) models.SessionContext {
	sessionID := c.GetHeader("X-Session-Id")
	if sessionID == "" {
		sessionID = c.GetHeader("X-User-Id")
	}

	return models.SessionContext{
		SessionID: sessionID,
		UserID:    c.GetHeader("X-User-Id"),
		Name:      c.GetHeader("X-User-Name"),
		Email:     c.GetHeader("X-User-Email"),
		Phone:     c.GetHeader("X-User-Phone"),
		Token:     bearerToken(c.GetHeader("Authorization")),
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
