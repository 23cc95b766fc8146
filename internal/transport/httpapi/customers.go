package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := domain.CustomerFilter{Search: r.URL.Query().Get("search")}
	list, err := h.svc.Customers.ListCustomers(r.Context(), filter, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapSlice(list, toCustomerResponse))
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	customer, err := h.svc.Customers.CreateCustomer(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	customer, err := h.svc.Customers.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func (h *handler) replaceCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	h.updateCustomer(w, r, &req, func() domain.CustomerUpdate {
		return domain.FullCustomerUpdate(req.input())
	})
}

func (h *handler) patchCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerPatchRequest
	h.updateCustomer(w, r, &req, func() domain.CustomerUpdate {
		return domain.PartialCustomerUpdate(req.patch())
	})
}

func (h *handler) updateCustomer(w http.ResponseWriter, r *http.Request, req any, build func() domain.CustomerUpdate) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.decode(w, r, req); err != nil {
		h.fail(w, r, err)
		return
	}
	customer, err := h.svc.Customers.UpdateCustomer(r.Context(), id, build())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func (h *handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	customer, err := h.svc.Customers.DeleteCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCustomerResponse(customer))
}
