package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/James-Hooson/Bonsai-Biz/internal/auth"
	"github.com/James-Hooson/Bonsai-Biz/internal/catalog"
	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/pkg/logging"
)

const maxProductBody = 64 << 10

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.opts.Catalog.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.internalError(w, "list_products", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.opts.Catalog.Get(r.Context(), domain.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeStoreError(w, "get_product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.opts.Orders.GetOrder(r.Context(), domain.OrderID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeStoreError(w, "get_order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	body, ok := readProductBody(w, r)
	if !ok {
		return
	}
	p, err := s.opts.Catalog.Create(r.Context(), actor(r), body)
	if err != nil {
		s.writeStoreError(w, "admin_create_product", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	body, ok := readProductBody(w, r)
	if !ok {
		return
	}
	p, err := s.opts.Catalog.Update(r.Context(), actor(r), domain.ProductID(chi.URLParam(r, "id")), body)
	if err != nil {
		s.writeStoreError(w, "admin_update_product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Catalog.Delete(r.Context(), actor(r), domain.ProductID(chi.URLParam(r, "id"))); err != nil {
		s.writeStoreError(w, "admin_delete_product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readProductBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProductBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "Request body too large"})
		return nil, false
	}
	return body, true
}

func actor(r *http.Request) string {
	if p, ok := auth.FromContext(r.Context()); ok {
		return p.Subject
	}
	return "unknown"
}

func (s *Server) writeStoreError(w http.ResponseWriter, step string, err error) {
	var invalid *catalog.InvalidProductError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid product", "details": invalid.Problems})
	case errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Product not found"})
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Order not found"})
	case errors.Is(err, domain.ErrProductExists):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "Product already exists"})
	default:
		s.internalError(w, step, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, step string, err error) {
	logging.Log(logging.Fields{Service: service, Step: step, Status: "error", Error: err.Error()})
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
}
