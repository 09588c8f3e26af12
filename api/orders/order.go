// Package orders serves order placement and the dispense log.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kilianp07/vending/api/respond"
	"github.com/kilianp07/vending/core/logger"
	"github.com/kilianp07/vending/core/model"
	"github.com/kilianp07/vending/core/vending"
)

// Dispenser runs an order on the machine.
type Dispenser interface {
	SubmitOrder(ctx context.Context, items []model.ItemRef) (model.OrderResult, error)
}

// Recorder persists the sale and decrements stock.
type Recorder interface {
	PlaceOrder(ctx context.Context, items []model.ItemRef) error
}

type orderRequest struct {
	Products []model.ItemRef `json:"products"`
}

type orderResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	OrderID string              `json:"order_id"`
	Items   []model.ItemOutcome `json:"items"`
}

// NewOrderHandler serves POST /api/order. The sale is recorded first, then
// the request blocks until the machine has processed every item.
func NewOrderHandler(rec Recorder, d Dispenser, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Products) == 0 {
			log.Infof("order rejected: invalid or empty products array")
			respond.Fail(w, http.StatusBadRequest, "Invalid or empty products array")
			return
		}
		for _, it := range req.Products {
			if it.Quantity <= 0 {
				log.Infof("order rejected: product %d has quantity %d", it.ID, it.Quantity)
				respond.Fail(w, http.StatusBadRequest, "Invalid quantity for product "+strconv.Itoa(it.ID))
				return
			}
		}
		if err := rec.PlaceOrder(r.Context(), req.Products); err != nil {
			log.Errorf("order: store: %v", err)
			respond.Fail(w, http.StatusInternalServerError, "Order failed: Database error: "+err.Error())
			return
		}
		res, err := d.SubmitOrder(r.Context(), req.Products)
		switch {
		case errors.Is(err, vending.ErrInvalidOrder):
			respond.Fail(w, http.StatusBadRequest, "Order failed: "+err.Error())
			return
		case errors.Is(err, vending.ErrQueueFull), errors.Is(err, vending.ErrEngineClosed):
			respond.Fail(w, http.StatusServiceUnavailable, "Order failed: "+err.Error())
			return
		case err != nil:
			log.Errorf("order: dispense: %v", err)
			respond.Fail(w, http.StatusInternalServerError, "Order failed: "+err.Error())
			return
		}
		log.Infof("order %s processed: %d dispensed, %d failed, %d disconnected", res.OrderID,
			res.Count(model.StatusDispensed), res.Count(model.StatusFailed), res.Count(model.StatusDisconnected))
		respond.JSON(w, http.StatusOK, orderResponse{
			Success: true,
			Message: "Order placed and processed by vending machine",
			OrderID: res.OrderID,
			Items:   res.Items,
		})
	})
}
