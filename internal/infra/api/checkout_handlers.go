package api

import (
	"net"
	"net/http"

	"pix-checkout/internal/domain/model"
	"pix-checkout/internal/usecase"
)

type checkoutRequest struct {
	ProductID          string             `json:"productId"`
	PlanID             string             `json:"planId"`
	OrderBumpID        string             `json:"orderBumpId,omitempty"`
	Customer           model.CheckoutForm `json:"customer"`
	TrackingParameters map[string]string  `json:"trackingParameters,omitempty"`
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "productId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offer, err := s.deps.Checkout.Offer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	res, err := s.deps.Checkout.Submit(r.Context(), usecase.CheckoutRequest{
		ProductID:   req.ProductID,
		PlanID:      req.PlanID,
		OrderBumpID: req.OrderBumpID,
		Form:        req.Customer,
		Tracking:    req.TrackingParameters,
		ClientIP:    clientIP(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "correlationId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.deps.Checkout.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTeardown(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "correlationId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Checkout.Teardown(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "correlationId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.deps.Checkout.Confirmation(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// clientIP expects middleware.RealIP to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
