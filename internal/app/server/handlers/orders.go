package handlers

import (
	"encoding/json"
	"net/http"
	"qrdine/internal/core/domain"
	"qrdine/internal/core/services"
	"qrdine/pkg/logging"

	"github.com/gorilla/mux"
)

type OrderHandler struct {
	orders services.IOrderService
}

func NewOrderHandler(orders services.IOrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req domain.NewOrderParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WarnContext(r.Context(), "order handler - create - bad request", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		log.WarnContext(r.Context(), "order handler - update status - bad request", logging.Order(mux.Vars(r)["id"]), logging.Err(err))
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	order, err := h.orders.TransitionOrder(r.Context(), mux.Vars(r)["id"], domain.OrderStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		log.WarnContext(r.Context(), "order handler - update item status - bad request", logging.Order(mux.Vars(r)["id"]), logging.Err(err))
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	vars := mux.Vars(r)
	order, err := h.orders.TransitionItem(r.Context(), vars["id"], vars["itemId"], domain.ItemStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
