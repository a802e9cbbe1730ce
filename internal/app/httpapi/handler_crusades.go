package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vvvdotnet/crusades/internal/httputil"
)

func (h *handler) listCrusades(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Crusades.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"crusades": list})
}

func (h *handler) myCrusades(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	list, err := h.app.Crusades.ListMine(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"crusades": list})
}

func (h *handler) initCrusades(w http.ResponseWriter, r *http.Request) {
	created, err := h.app.Crusades.SeedDefaults(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.log.WithContext(r.Context()).WithField("created", len(created)).Info("default crusades seeded")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Default crusades created",
		"crusades": created,
	})
}

func (h *handler) getCrusade(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Crusades.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"crusade": c})
}

func (h *handler) enroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	enrollment, err := h.app.Crusades.Enroll(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Successfully enrolled in crusade",
		"enrollment": enrollment,
	})
}

func (h *handler) unenroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Crusades.Unenroll(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Successfully unenrolled from crusade"})
}
