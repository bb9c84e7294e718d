package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pix-checkout/internal/domain"
	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/domain/ports/repository"
	"pix-checkout/internal/infra/logging"
)

func (s *Server) adminRoutes(r chi.Router) {
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.deps.Auth.RequireAdmin)

		r.Get("/products", listHandler(s.deps.Catalog.ListProducts))
		r.Post("/products", saveHandler(s.deps.Catalog.SaveProduct, nil))
		r.Get("/products/{id}", s.handleGetProduct)
		r.Put("/products/{id}", saveHandler(s.deps.Catalog.SaveProduct, func(p *model.Product, id string) { p.ID = id }))
		r.Delete("/products/{id}", deleteHandler(s.deps.Catalog.DeleteProduct))

		r.Get("/plans", byProductHandler(s.deps.Catalog.ListPlans))
		r.Post("/plans", saveHandler(s.deps.Catalog.SavePlan, nil))
		r.Put("/plans/{id}", saveHandler(s.deps.Catalog.SavePlan, func(p *model.Plan, id string) { p.ID = id }))
		r.Delete("/plans/{id}", deleteHandler(s.deps.Catalog.DeletePlan))

		r.Get("/order-bumps", byProductHandler(s.deps.Catalog.ListOrderBumps))
		r.Post("/order-bumps", saveHandler(s.deps.Catalog.SaveOrderBump, nil))
		r.Put("/order-bumps/{id}", saveHandler(s.deps.Catalog.SaveOrderBump, func(b *model.OrderBump, id string) { b.ID = id }))
		r.Delete("/order-bumps/{id}", deleteHandler(s.deps.Catalog.DeleteOrderBump))

		r.Get("/pixels", listHandler(s.deps.Catalog.ListPixels))
		r.Post("/pixels", saveHandler(s.deps.Catalog.SavePixel, nil))
		r.Delete("/pixels/{id}", deleteHandler(s.deps.Catalog.DeletePixel))

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", saveHandler(s.deps.Catalog.SaveSettings, nil))

		r.Get("/orders", s.handleListOrders)
		r.Get("/orders/{correlationId}", s.handleGetOrder)
		r.Post("/orders/{correlationId}/refund", s.handleRefund)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := s.deps.Auth.Login(w, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			logging.With(r.Context(), s.log).Warn().Str("username", req.Username).Msg("admin login refused")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.deps.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Catalog.GetSettings(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	orders, err := s.deps.Orders.List(r.Context(), repository.OrderFilter{
		Status: model.OrderStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(orders)})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "correlationId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := s.deps.Orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "correlationId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := s.deps.Orders.Refund(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ---- generic CRUD handlers ----

func listHandler[T any](list func(ctx context.Context) ([]*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := list(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
	}
}

func byProductHandler[T any](list func(ctx context.Context, productID string) ([]*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := list(r.Context(), r.URL.Query().Get("productId"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
	}
}

// saveHandler decodes T and saves it. With setID, the path id wins over the body.
func saveHandler[T any](save func(ctx context.Context, v *T) (*T, error), setID func(v *T, id string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := new(T)
		if err := decodeJSON(r, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		status := http.StatusCreated
		if setID != nil {
			id, err := pathParam(r, "id")
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			setID(v, id)
			status = http.StatusOK
		} else if r.Method == http.MethodPut {
			status = http.StatusOK
		}
		saved, err := save(r.Context(), v)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, status, saved)
	}
}

func deleteHandler(del func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := del(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func nonNil[T any](items []*T) []*T {
	if items == nil {
		return []*T{}
	}
	return items
}
