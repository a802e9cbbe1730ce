package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *handler) globalLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.app.Leaderboard.Global(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *handler) crusadeLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.app.Leaderboard.Crusade(r.Context(), mux.Vars(r)["crusadeId"], r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
