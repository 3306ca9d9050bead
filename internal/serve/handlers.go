package serve

import (
	"errors"
	"net/http"
	"strings"

	"github.com/togpt/togpt/internal/chat"
	"github.com/togpt/togpt/internal/llm"
	"github.com/togpt/togpt/internal/preferences"
	"github.com/togpt/togpt/internal/search"
)

type messageRequest struct {
	Content string `json:"content"`
}

type modelRequest struct {
	Model string `json:"model"`
}

type searchTermRequest struct {
	Term string `json:"term"`
}

// chatResponse is returned by the message endpoints. OfferContinue tells the
// client whether the last reply looks cut off.
type chatResponse struct {
	Chat          chat.Conversation `json:"chat"`
	OfferContinue bool              `json:"offerContinue"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Snapshot())
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"chats": s.reg.Conversations(r.URL.Query().Get("q"))})
}

// handleSetSearchTerm stores the sidebar filter in the shared state.
func (s *Server) handleSetSearchTerm(w http.ResponseWriter, r *http.Request) {
	var req searchTermRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.reg.SetSearchTerm(req.Term)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	id := s.reg.CreateChat(r.Context())
	conv, _ := s.reg.Conversation(id)
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleClearChats(w http.ResponseWriter, r *http.Request) {
	s.reg.ClearAllChats(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.reg.Conversation(r.PathValue("id"))
	if !ok {
		writeRegistryError(w, chat.ErrChatNotFound)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.reg.Conversation(id); !ok {
		writeRegistryError(w, chat.ErrChatNotFound)
		return
	}
	s.reg.DeleteChat(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateChat(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.SetActiveChat(r.Context(), r.PathValue("id")); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	chatID, err := s.reg.SendMessage(detached(r), req.Content)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	s.writeChat(w, chatID)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	chatID := s.reg.ActiveChat()
	if err := s.reg.EditMessage(detached(r), r.PathValue("id"), req.Content); err != nil {
		writeRegistryError(w, err)
		return
	}
	s.writeChat(w, chatID)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	chatID := s.reg.ActiveChat()
	if err := s.reg.ContinueGeneration(detached(r), r.PathValue("id")); err != nil {
		writeRegistryError(w, err)
		return
	}
	s.writeChat(w, chatID)
}

func (s *Server) writeChat(w http.ResponseWriter, chatID string) {
	conv, ok := s.reg.Conversation(chatID)
	if !ok {
		// Deleted while the reply was generating.
		writeRegistryError(w, chat.ErrChatNotFound)
		return
	}
	resp := chatResponse{Chat: conv}
	if n := len(conv.Messages); n > 0 {
		last := conv.Messages[n-1]
		resp.OfferContinue = last.Role == chat.RoleAssistant && !last.Error && llm.ShouldOfferContinue(last.Content)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.ClearMessages(r.Context()); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.reg.StopGeneration()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	model, err := chat.ParseModel(strings.TrimSpace(req.Model), s.reg.Models())
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	switched, err := s.reg.SetActiveModel(r.Context(), model)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"switched": switched, "state": s.reg.Snapshot()})
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	s.reg.HideModelChangeNotice()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"preferences": s.prefs.Preferences(),
		"error":       s.prefs.Error(),
	})
}

func (s *Server) handlePatchPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferences.Partial
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.prefs.Update(r.Context(), req); err != nil {
		var verr *preferences.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Message)
			return
		}
		// The change is applied in memory even when saving failed.
		s.logger.Warn("preferences not persisted", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preferences": s.prefs.Preferences(),
		"error":       s.prefs.Error(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	results, err := s.searcher.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		var serr *search.Error
		if errors.As(err, &serr) {
			writeError(w, http.StatusBadGateway, serr.Message)
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
