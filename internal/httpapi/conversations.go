package httpapi

import (
	"net/http"
	"strconv"

	"github.com/chatvault/chatvault/internal/store"
)

func (srv *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ConversationFilter{
		Search:  q.Get("search"),
		GizmoID: q.Get("gizmo_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	convs, err := srv.store.ListConversationsFiltered(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (srv *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, _, err := srv.store.GetConversation(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	project, ok, err := srv.store.GetProject(r.Context(), conv.GizmoID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := struct {
		Conversation any `json:"conversation"`
		Project      any `json:"project,omitempty"`
	}{Conversation: conv}
	if ok {
		resp.Project = project
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	_, messages, err := srv.store.GetConversation(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (srv *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := srv.store.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (srv *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := srv.store.Stats(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
