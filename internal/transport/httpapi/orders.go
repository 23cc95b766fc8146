package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.Orders.ListOrders(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapSlice(list, toOrderResponse))
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.Orders.CreateOrder(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderWithItemsResponse(order))
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.Orders.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// replaceOrder заменяет адреса и весь набор позиций; ответ содержит новые позиции.
func (h *handler) replaceOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req orderRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.Orders.UpdateOrder(r.Context(), id, domain.FullOrderUpdate(req.input()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderWithItemsResponse(order))
}

// patchOrder меняет только поля адресов; позиции и total не трогаются.
func (h *handler) patchOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req orderPatchRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.Orders.UpdateOrder(r.Context(), id, domain.PartialOrderUpdate(req.patch()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order.Order))
}

func (h *handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.Orders.DeleteOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *handler) listOrderItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.Orders.ListOrderItems(r.Context(), orderID, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapSlice(items, toOrderItemResponse))
}

func (h *handler) createOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req lineRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.svc.Orders.CreateOrderItem(r.Context(), orderID, req.line())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderItemResponse(item))
}

func (h *handler) deleteAllOrderItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.Orders.DeleteAllOrderItems(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

func itemIDs(r *http.Request) (int64, int64, error) {
	orderID, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		return 0, 0, err
	}
	return orderID, itemID, nil
}

func (h *handler) getOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, err := itemIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.svc.Orders.GetOrderItem(r.Context(), orderID, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderItemResponse(item))
}

func (h *handler) replaceOrderItem(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	h.updateOrderItem(w, r, &req, func() domain.OrderItemUpdate {
		return domain.FullOrderItemUpdate(req.line())
	})
}

func (h *handler) patchOrderItem(w http.ResponseWriter, r *http.Request) {
	var req itemPatchRequest
	h.updateOrderItem(w, r, &req, func() domain.OrderItemUpdate {
		return domain.PartialOrderItemUpdate(req.patch())
	})
}

func (h *handler) updateOrderItem(w http.ResponseWriter, r *http.Request, req any, build func() domain.OrderItemUpdate) {
	orderID, itemID, err := itemIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.decode(w, r, req); err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.svc.Orders.UpdateOrderItem(r.Context(), orderID, itemID, build())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderItemResponse(item))
}

func (h *handler) deleteOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, err := itemIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item, err := h.svc.Orders.DeleteOrderItem(r.Context(), orderID, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderItemResponse(item))
}
