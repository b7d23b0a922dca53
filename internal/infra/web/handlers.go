package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ai-course-studio/internal/domain/model"
)

// ---- subscription ----

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	rep, err := s.ent.Usage(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ---- generation ----

func (s *Server) handleGenerateCourse(w http.ResponseWriter, r *http.Request) {
	var p model.CourseParams
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.gen.GenerateCourse(r.Context(), UserIDFrom(r.Context()), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGenerateLesson(w http.ResponseWriter, r *http.Request) {
	var p model.LessonParams
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.gen.GenerateLesson(r.Context(), UserIDFrom(r.Context()), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var p model.QuizParams
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.gen.GenerateQuiz(r.Context(), UserIDFrom(r.Context()), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// ---- library ----

// pageParams reads ?offset=&limit=; bad values fall back to the defaults.
func pageParams(r *http.Request) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	items, err := s.artifacts.ListCourses(r.Context(), UserIDFrom(r.Context()), offset, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*model.Course{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, err := s.artifacts.GetCourse(r.Context(), UserIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type shareRequest struct {
	Shared bool `json:"shared"`
}

func (s *Server) handleShareCourse(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.artifacts.ShareCourse(r.Context(), UserIDFrom(r.Context()), chi.URLParam(r, "id"), req.Shared); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := s.artifacts.DeleteCourse(r.Context(), UserIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	items, err := s.artifacts.ListLessons(r.Context(), UserIDFrom(r.Context()), offset, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*model.Lesson{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	l, err := s.artifacts.GetLesson(r.Context(), UserIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := s.artifacts.DeleteLesson(r.Context(), UserIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	items, err := s.artifacts.ListQuizzes(r.Context(), UserIDFrom(r.Context()), offset, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*model.Quiz{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := s.artifacts.GetQuiz(r.Context(), UserIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := s.artifacts.DeleteQuiz(r.Context(), UserIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- billing ----

type confirmRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

func (s *Server) handleConfirmBilling(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.billing.Confirm(r.Context(), UserIDFrom(r.Context()), req.SubscriptionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelBilling(w http.ResponseWriter, r *http.Request) {
	rec, err := s.billing.Cancel(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
