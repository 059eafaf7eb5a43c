package trading

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ksred/klear-exec/internal/attributes"
	"github.com/ksred/klear-exec/internal/execution"
	"github.com/ksred/klear-exec/internal/instrument"
	"github.com/ksred/klear-exec/internal/orders"
	"github.com/ksred/klear-exec/internal/types"
	"github.com/ksred/klear-exec/pkg/response"
)

// GinHandlers contains HTTP handlers for order and execution endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for trading endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterRoutes mounts client routes on client and broker routes on internal
func (h *GinHandlers) RegisterRoutes(client, internal *gin.RouterGroup) {
	client.POST("", h.CreateOrderHandler())
	client.GET("", h.ListOrdersHandler())
	client.GET("/:order_id", h.GetOrderHandler())
	client.GET("/:order_id/report", h.GetReportHandler())
	client.POST("/:order_id/submit", h.SubmitOrderHandler())
	client.PUT("/:order_id/status", h.UpdateStatusHandler())
	client.PUT("/:order_id/comment", h.UpdateCommentHandler())
	client.GET("/:order_id/attributes", h.ListAttributesHandler())
	client.POST("/:order_id/attributes", h.AddAttributeHandler())
	client.PUT("/:order_id/attributes", h.SetAttributeHandler())
	client.DELETE("/:order_id/attributes/:name", h.RemoveAttributeHandler())

	internal.POST("/orders/:order_id/fills", h.RecordFillsHandler())
}

// CreateOrderHandler handles POST requests to create new orders
// Requires a valid JWT token; the order id is supplied by the client
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, ok := requireClient(c)
		if !ok {
			return
		}

		var req types.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(clientID, req)
		if err != nil {
			handleServiceError(c, err)
			return
		}

		response.Success(c, order)
	}
}

func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, ok := requireClient(c)
		if !ok {
			return
		}
		response.Success(c, h.service.ListOrders(clientID))
	}
}

// GetOrderHandler handles GET requests to retrieve order status
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		order, err := h.service.GetOrder(clientID, orderID)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, order)
	}
}

// GetReportHandler returns the execution report with the average price
func (h *GinHandlers) GetReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		report, err := h.service.Report(clientID, orderID)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, report)
	}
}

// SubmitOrderHandler marks an order as submitted. The body is optional.
func (h *GinHandlers) SubmitOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		var req types.SubmitOrderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.BadRequest(c, err.Error())
				return
			}
		}
		var at time.Time
		if req.SubmittedAt != nil {
			at = *req.SubmittedAt
		}

		order, err := h.service.SubmitOrder(clientID, orderID, at)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, order)
	}
}

func (h *GinHandlers) UpdateStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		var req types.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.UpdateStatus(clientID, orderID, req.Status)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, order)
	}
}

func (h *GinHandlers) UpdateCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		var req types.UpdateCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.SetComment(clientID, orderID, req.Comment)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, order)
	}
}

func (h *GinHandlers) ListAttributesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		attrs, err := h.service.Attributes(clientID, orderID)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, attrs)
	}
}

// AddAttributeHandler fails with 409 when the name already exists
func (h *GinHandlers) AddAttributeHandler() gin.HandlerFunc {
	return h.writeAttributeHandler(h.service.AddAttribute)
}

// SetAttributeHandler overwrites an attribute of the same kind
func (h *GinHandlers) SetAttributeHandler() gin.HandlerFunc {
	return h.writeAttributeHandler(h.service.SetAttribute)
}

func (h *GinHandlers) writeAttributeHandler(write func(string, int64, types.AttributeRequest) (types.AttributeView, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		var req types.AttributeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		attr, err := write(clientID, orderID, req)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, attr)
	}
}

func (h *GinHandlers) RemoveAttributeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, orderID, ok := clientAndOrder(c)
		if !ok {
			return
		}

		if err := h.service.RemoveAttribute(clientID, orderID, c.Param("name")); err != nil {
			handleServiceError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// RecordFillsHandler ingests a batch of broker fills
// Requires internal authentication and an Idempotency-Key header
// URL parameter: order_id
func (h *GinHandlers) RecordFillsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		var req types.RecordFillsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.RecordFills(orderID, idempotencyKey, req)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		response.Success(c, result)
	}
}

func requireClient(c *gin.Context) (string, bool) {
	clientID := c.GetString("clientID")
	if clientID == "" {
		response.Unauthorized(c, "Invalid client ID in token")
		return "", false
	}
	return clientID, true
}

func parseOrderID(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Order ID must be an integer")
		return 0, false
	}
	return orderID, true
}

func clientAndOrder(c *gin.Context) (string, int64, bool) {
	clientID, ok := requireClient(c)
	if !ok {
		return "", 0, false
	}
	orderID, ok := parseOrderID(c)
	if !ok {
		return "", 0, false
	}
	return clientID, orderID, true
}

// handleServiceError maps domain errors onto the response envelope
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, attributes.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrDuplicateOrder),
		errors.Is(err, ErrIdempotencyConflict),
		errors.Is(err, attributes.ErrDuplicateName),
		errors.Is(err, attributes.ErrTypeConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnknownOrderType),
		errors.Is(err, orders.ErrInvalidConfiguration),
		errors.Is(err, instrument.ErrInvalidContract),
		errors.Is(err, execution.ErrNonPositiveSize):
		response.ValidationFailed(c, err.Error())
	default:
		response.Handle(c, nil, err)
	}
}
