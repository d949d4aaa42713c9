package handlers

import (
	"encoding/json"
	"net/http"
	"qrdine/internal/core/domain"
	"qrdine/internal/core/services"
	"qrdine/pkg/logging"
	"qrdine/pkg/middleware"
)

type NotificationHandler struct {
	notifications services.INotificationService
}

func NewNotificationHandler(n services.INotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: n}
}

type notifyResponse struct {
	Recipients int `json:"recipients"`
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var n domain.Notice
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		log.WarnContext(r.Context(), "notification handler - create - bad request", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// branch-scoped staff may only notify their own branch admins
	if staff, ok := middleware.StaffFromContext(r.Context()); ok && staff.BranchID != "" &&
		n.Target == domain.NoticeToAdmin && n.BranchID != staff.BranchID {
		log.WarnContext(r.Context(), "notification handler - create - branch out of scope", logging.Branch(n.BranchID))
		writeError(w, http.StatusForbidden, "branch out of scope")
		return
	}
	res, err := h.notifications.Notify(r.Context(), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, notifyResponse{Recipients: res.Recipients})
}
