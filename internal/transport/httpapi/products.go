package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.Products.ListProducts(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapSlice(list, toProductResponse))
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.svc.Products.CreateProduct(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.svc.Products.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *handler) replaceProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	h.updateProduct(w, r, &req, func() domain.ProductUpdate {
		return domain.FullProductUpdate(req.input())
	})
}

func (h *handler) patchProduct(w http.ResponseWriter, r *http.Request) {
	var req productPatchRequest
	h.updateProduct(w, r, &req, func() domain.ProductUpdate {
		return domain.PartialProductUpdate(req.patch())
	})
}

// updateProduct общий путь PUT и PATCH: тело декодируется в req, build строит вариант обновления.
func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request, req any, build func() domain.ProductUpdate) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.decode(w, r, req); err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.svc.Products.UpdateProduct(r.Context(), id, build())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.svc.Products.DeleteProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductResponse(product))
}
