package handlers

import (
	"net/http"
	"qrdine/internal/core/contracts"
	"qrdine/internal/core/domain"
	"qrdine/pkg/logging"
	"time"

	"github.com/gorilla/mux"
)

type PresenceHandler struct {
	registry contracts.Registry
	presence contracts.PresenceStore
	ttl      time.Duration
}

// NewPresenceHandler accepts a nil store; only this instance's members are reported then.
func NewPresenceHandler(registry contracts.Registry, presence contracts.PresenceStore, ttl time.Duration) *PresenceHandler {
	return &PresenceHandler{registry: registry, presence: presence, ttl: ttl}
}

type presenceResponse struct {
	Room   string   `json:"room"`
	Local  int      `json:"local"`
	Online []string `json:"online"`
}

func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	vars := mux.Vars(r)
	a, err := domain.NewAudience(vars["type"], vars["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	group, err := domain.Resolve(a)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	local := h.registry.MembersOf(group)
	online := local
	if h.presence != nil {
		if online, err = h.presence.Online(r.Context(), group, h.ttl); err != nil {
			log.ErrorContext(r.Context(), "presence handler - get - presence lookup failed", logging.Group(group), logging.Err(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	if online == nil {
		online = []string{}
	}
	writeJSON(w, http.StatusOK, presenceResponse{Room: group, Local: len(local), Online: online})
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
