package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/merchantlabs/backoffice/internal/auth"
	"github.com/merchantlabs/backoffice/internal/domain/catalog"
	"github.com/merchantlabs/backoffice/internal/domain/order"
	"github.com/merchantlabs/backoffice/internal/usecase/ordering"
)

type placeOrderRequest struct {
	Currency string `json:"currency" binding:"required,len=3"`
	Lines    []struct {
		ProductID int64 `json:"product_id,string" binding:"required"`
		Quantity  int   `json:"quantity" binding:"required,gt=0"`
	} `json:"lines" binding:"required,min=1"`
}

func (r *Router) PlaceOrder(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lines := make([]ordering.PlaceOrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, ordering.PlaceOrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	placed, err := r.placeUC.Execute(c.Request.Context(), ordering.PlaceOrderInput{
		CustomerID: userID,
		Currency:   req.Currency,
		Lines:      lines,
	})
	if err != nil {
		switch {
		case errors.Is(err, ordering.ErrProductNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "product not found"})
		case errors.Is(err, catalog.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock"})
		case errors.Is(err, catalog.ErrInactiveProduct):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "product is not active"})
		case errors.Is(err, order.ErrEmptyOrder):
			c.JSON(http.StatusBadRequest, gin.H{"error": "order has no lines"})
		default:
			r.logger.Error("place_order_failed", zap.Error(err), zap.Int64("customer_id", userID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, placed)
}

func (r *Router) GetOrder(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	entity, err := r.statusUC.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entity == nil || entity.CustomerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (r *Router) ListMyOrders(c *gin.Context) {
	userID, _ := auth.UserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, err := r.statusUC.ListByCustomer(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) CancelOrder(c *gin.Context) {
	userID, _ := auth.UserID(c)
	id, ok := pathID(c)
	if !ok {
		return
	}

	existing, err := r.statusUC.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing == nil || existing.CustomerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	r.transitionOrder(c, id, r.statusUC.Cancel)
}

func (r *Router) MarkOrderPaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r.transitionOrder(c, id, r.statusUC.MarkPaid)
}

func (r *Router) MarkOrderShipped(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r.transitionOrder(c, id, r.statusUC.MarkShipped)
}

func (r *Router) transitionOrder(c *gin.Context, id int64, apply func(ctx context.Context, orderID int64) (*order.Order, error)) {
	entity, err := apply(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ordering.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, order.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "invalid order status transition"})
		default:
			r.logger.Error("order_transition_failed", zap.Error(err), zap.Int64("order_id", id))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, entity)
}
