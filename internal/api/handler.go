package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ahkhan/chatpay-server/internal/cache"
	"github.com/ahkhan/chatpay-server/internal/models"
	"github.com/ahkhan/chatpay-server/internal/observability/metrics"
	"github.com/ahkhan/chatpay-server/internal/service"
)

const (
	blockedIDsCacheTTL  = 5 * time.Minute
	payDetailsCacheTTL  = time.Minute
	blockedIDsKeyPrefix = "blocks:ids:"
	payDetailsKeyPrefix = "paydetails:"
)

// Handler holds the service and wires it to gin routes
type Handler struct {
	svc   service.Service
	cache *cache.Cache
}

// NewHandler creates a new API handler. The cache may wrap a nil Redis
// client, in which case every lookup misses.
func NewHandler(svc service.Service, c *cache.Cache) *Handler {
	return &Handler{svc: svc, cache: c}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/api")
	protected.Use(AuthMiddleware())
	{
		// User directory
		protected.POST("/users/sync", h.SyncUser)
		protected.GET("/users/me", h.GetMe)
		protected.GET("/users/search", h.SearchUsers)
		protected.GET("/users/:externalId/payment-details", h.GetPublicPaymentDetails)

		// Block list
		protected.POST("/blocks", h.BlockUser)
		protected.DELETE("/blocks/:blockedId", h.UnblockUser)
		protected.GET("/blocks", h.ListBlockedUsers)
		protected.GET("/blocks/ids", h.ListBlockedIDs)

		// Payment methods
		protected.POST("/payment-methods", h.AddPaymentMethod)
		protected.PUT("/payment-methods/:id", h.UpdatePaymentMethod)
		protected.DELETE("/payment-methods/:id", h.DeletePaymentMethod)
		protected.GET("/payment-methods", h.ListPaymentMethods)
		protected.GET("/payment-methods/default", h.GetDefaultPaymentMethod)

		// Payments
		protected.POST("/payments", h.CreatePayment)
		protected.POST("/payments/:id/transition", h.TransitionPayment)
		protected.GET("/payments/history", h.PaymentHistory)
		protected.GET("/payments/pending", h.PendingPayments)

		// Group roles
		protected.POST("/channels/:channelId/roles/initialize", h.InitializeGroupRoles)
		protected.POST("/channels/:channelId/roles", h.CreateGroupRole)
		protected.DELETE("/channels/:channelId/roles/:roleName", h.DeleteGroupRole)
		protected.GET("/channels/:channelId/roles", h.GetGroupRoles)
		protected.PUT("/channels/:channelId/members/:userId/role", h.AssignGroupRole)
		protected.GET("/channels/:channelId/members", h.ListGroupMembers)
		protected.GET("/channels/:channelId/me", h.MyChannelRole)
	}
}

// Health is the liveness probe
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.StatusResponse{Status: "ok"})
}

// actorID extracts the authenticated external user id set by
// AuthMiddleware.
func actorID(c *gin.Context) string {
	return c.MustGet("userId").(string)
}

// handleError maps service error kinds to HTTP responses
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status: "error", Code: "VALIDATION_ERROR", Message: err.Error(),
		})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status: "error", Code: "FORBIDDEN", Message: err.Error(),
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status: "error", Code: "NOT_FOUND", Message: err.Error(),
		})
	case errors.Is(err, service.ErrPrecondition):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status: "error", Code: "PRECONDITION_FAILED", Message: err.Error(),
		})
	default:
		logrus.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error("Internal error")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status: "error", Code: "INTERNAL_ERROR", Message: "Internal server error",
		})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status: "error", Code: "INVALID_REQUEST", Message: err.Error(),
	})
}

// User directory handlers

// SyncUser upserts the caller's identity-provider profile
func (h *Handler) SyncUser(c *gin.Context) {
	var req models.SyncUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.SyncUser(c.Request.Context(), actorID(c), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.svc.GetUserByExternalID(c.Request.Context(), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) SearchUsers(c *gin.Context) {
	resp, err := h.svc.SearchUsers(c.Request.Context(), actorID(c), c.Query("q"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPublicPaymentDetails returns another user's payout routing details
// so the caller can perform the off-platform transfer. Cached briefly,
// invalidated whenever the owner mutates their methods.
func (h *Handler) GetPublicPaymentDetails(c *gin.Context) {
	ownerID := c.Param("externalId")
	key := payDetailsKeyPrefix + ownerID

	var cached models.PublicPaymentDetailsResponse
	if hit, err := h.cache.Get(c.Request.Context(), key, &cached); err == nil && hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	resp, err := h.svc.GetPublicPaymentDetails(c.Request.Context(), ownerID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if err := h.cache.Set(c.Request.Context(), key, resp, payDetailsCacheTTL); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}

	c.JSON(http.StatusOK, resp)
}

// Block list handlers

func (h *Handler) BlockUser(c *gin.Context) {
	var req models.BlockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor := actorID(c)
	resp, err := h.svc.BlockUser(c.Request.Context(), actor, req.BlockedID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	metrics.ObserveBlockOperation("block")
	h.invalidateBlockCache(c, actor)

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UnblockUser(c *gin.Context) {
	actor := actorID(c)
	resp, err := h.svc.UnblockUser(c.Request.Context(), actor, c.Param("blockedId"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	metrics.ObserveBlockOperation("unblock")
	h.invalidateBlockCache(c, actor)

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) invalidateBlockCache(c *gin.Context, actor string) {
	if err := h.cache.Delete(c.Request.Context(), blockedIDsKeyPrefix+actor); err != nil {
		logrus.WithFields(logrus.Fields{"actor": actor, "error": err.Error()}).Warn("Cache invalidation failed")
	}
}

func (h *Handler) ListBlockedUsers(c *gin.Context) {
	resp, err := h.svc.ListBlockedUsers(c.Request.Context(), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListBlockedIDs serves the visibility filter used by the chat surface
// before rendering rooms or search results, so it is cached.
func (h *Handler) ListBlockedIDs(c *gin.Context) {
	actor := actorID(c)
	key := blockedIDsKeyPrefix + actor

	var cached models.BlockedIDsResponse
	if hit, err := h.cache.Get(c.Request.Context(), key, &cached); err == nil && hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	resp, err := h.svc.ListBlockedIDs(c.Request.Context(), actor)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if err := h.cache.Set(c.Request.Context(), key, resp, blockedIDsCacheTTL); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}

	c.JSON(http.StatusOK, resp)
}

// Payment method handlers

func (h *Handler) AddPaymentMethod(c *gin.Context) {
	var req models.AddPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor := actorID(c)
	resp, err := h.svc.AddPaymentMethod(c.Request.Context(), actor, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.invalidatePayDetailsCache(c, actor)

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) UpdatePaymentMethod(c *gin.Context) {
	var req models.UpdatePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor := actorID(c)
	resp, err := h.svc.UpdatePaymentMethod(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.invalidatePayDetailsCache(c, actor)

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeletePaymentMethod(c *gin.Context) {
	actor := actorID(c)
	if err := h.svc.DeletePaymentMethod(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	h.invalidatePayDetailsCache(c, actor)

	c.JSON(http.StatusOK, models.StatusResponse{Status: "success", Message: "Payment method deleted"})
}

func (h *Handler) invalidatePayDetailsCache(c *gin.Context, owner string) {
	if err := h.cache.Delete(c.Request.Context(), payDetailsKeyPrefix+owner); err != nil {
		logrus.WithFields(logrus.Fields{"owner": owner, "error": err.Error()}).Warn("Cache invalidation failed")
	}
}

func (h *Handler) ListPaymentMethods(c *gin.Context) {
	resp, err := h.svc.ListPaymentMethods(c.Request.Context(), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetDefaultPaymentMethod(c *gin.Context) {
	resp, err := h.svc.GetDefaultPaymentMethod(c.Request.Context(), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Payment handlers

func (h *Handler) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	actor := actorID(c)
	resp, err := h.svc.CreatePayment(c.Request.Context(), actor, req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	metrics.ObservePaymentCreated()
	logrus.WithFields(logrus.Fields{
		"payment_id": resp.Payment.ID,
		"sender":     actor,
		"receiver":   req.ReceiverID,
		"amount":     req.Amount,
		"currency":   req.Currency,
	}).Info("Payment intent created")

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) TransitionPayment(c *gin.Context) {
	var req models.TransitionPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.TransitionPayment(c.Request.Context(), actorID(c), c.Param("id"), req.Action)
	if err != nil {
		h.handleError(c, err)
		return
	}

	metrics.ObservePaymentTransition(resp.Payment.Status)
	logrus.WithFields(logrus.Fields{
		"payment_id": resp.Payment.ID,
		"status":     resp.Payment.Status,
		"actor":      actorID(c),
	}).Info("Payment resolved")

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PaymentHistory(c *gin.Context) {
	resp, err := h.svc.PaymentHistory(c.Request.Context(), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PendingPayments(c *gin.Context) {
	resp, err := h.svc.PendingPayments(c.Request.Context(), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Group role handlers

// InitializeGroupRoles seeds default roles after the surrounding
// application has created the channel on the chat transport. Transport
// calls and this mutation are deliberately separate steps; a failure
// here leaves a usable channel without role metadata and the caller may
// retry.
func (h *Handler) InitializeGroupRoles(c *gin.Context) {
	resp, err := h.svc.InitializeGroupRoles(c.Request.Context(), c.Param("channelId"), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateGroupRole(c *gin.Context) {
	var req models.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.CreateGroupRole(c.Request.Context(), actorID(c), c.Param("channelId"), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) DeleteGroupRole(c *gin.Context) {
	err := h.svc.DeleteGroupRole(c.Request.Context(), actorID(c), c.Param("channelId"), c.Param("roleName"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{Status: "success", Message: "Role deleted"})
}

func (h *Handler) GetGroupRoles(c *gin.Context) {
	resp, err := h.svc.GetGroupRoles(c.Request.Context(), c.Param("channelId"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AssignGroupRole(c *gin.Context) {
	var req models.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.AssignGroupRole(
		c.Request.Context(), actorID(c), c.Param("channelId"), c.Param("userId"), req.RoleName)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListGroupMembers(c *gin.Context) {
	resp, err := h.svc.ListGroupMembers(c.Request.Context(), c.Param("channelId"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) MyChannelRole(c *gin.Context) {
	resp, err := h.svc.MyChannelRole(c.Request.Context(), c.Param("channelId"), actorID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
