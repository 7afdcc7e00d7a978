package handle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"snap-solve/api/internal/solver"
	"snap-solve/api/internal/store"
)

const solveTimeout = 120 * time.Second

type processRequest struct {
	Text         string `json:"text"`
	QuestionType string `json:"questionType"`
}

// Process answers a question submitted as text (the client already ran OCR,
// or the user typed the question in).
func (h *Handle) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Question text is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), solveTimeout)
	defer cancel()

	res, err := h.solve.Solve(ctx, req.Text, req.QuestionType, solver.Options{})
	if err != nil {
		log.Printf("process question: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to process question")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type recognizeRequest struct {
	ImageB64     string `json:"image_b64"`
	QuestionType string `json:"questionType"`
}

// Recognize runs the full pipeline server-side on an uploaded still image.
func (h *Handle) Recognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.ImageB64))
	if err != nil || len(img) == 0 {
		writeError(w, http.StatusBadRequest, "bad image_b64")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), solveTimeout)
	defer cancel()

	res, err := h.pipe.ProcessImage(ctx, img, req.QuestionType, solver.Options{}, nil)
	if err != nil {
		log.Printf("recognize question: %v", err)
		writeError(w, http.StatusBadGateway, "Failed to process question")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// questionSummary is the list-view shape shared by recent and saved.
type questionSummary struct {
	ID           int       `json:"id"`
	OriginalText string    `json:"originalText"`
	Answer       string    `json:"answer"`
	QuestionType string    `json:"questionType"`
	CreatedAt    time.Time `json:"createdAt"`
	IsSaved      bool      `json:"isSaved"`
}

func summarize(qs []store.Question) []questionSummary {
	out := make([]questionSummary, 0, len(qs))
	for _, q := range qs {
		out = append(out, questionSummary{
			ID:           q.ID,
			OriginalText: q.OriginalText,
			Answer:       q.Answer,
			QuestionType: q.QuestionType,
			CreatedAt:    q.CreatedAt,
			IsSaved:      q.IsSaved,
		})
	}
	return out
}

func (h *Handle) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	qs, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		log.Printf("recent questions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch questions")
		return
	}
	writeJSON(w, http.StatusOK, summarize(qs))
}

func (h *Handle) Saved(w http.ResponseWriter, r *http.Request) {
	qs, err := h.store.List(r.Context(), nil)
	if err != nil {
		log.Printf("saved questions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch saved questions")
		return
	}
	saved := qs[:0:0]
	for _, q := range qs {
		if q.IsSaved {
			saved = append(saved, q)
		}
	}
	writeJSON(w, http.StatusOK, summarize(saved))
}

func (h *Handle) ToggleSave(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad question id")
		return
	}

	q, err := h.store.ToggleSave(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Question not found")
			return
		}
		log.Printf("toggle save %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update question")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": q.ID, "isSaved": q.IsSaved})
}
