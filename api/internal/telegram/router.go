package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snap-solve/api/internal/pipeline"
	"snap-solve/api/internal/store"
)

// Router dispatches bot updates: photos go through the capture-to-answer
// pipeline, commands read from the store.
type Router struct {
	Bot   *tgbotapi.BotAPI
	Pipe  *pipeline.Pipeline
	Store store.QuestionStore
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	cid := upd.Message.Chat.ID

	if upd.Message.IsCommand() {
		r.handleCommand(upd)
		return
	}
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(*upd.Message)
		return
	}
	if txt := strings.TrimSpace(upd.Message.Text); txt != "" {
		r.solveText(cid, txt)
		return
	}
	r.send(cid, "Send a photo of a question, or type it as text.")
}

func (r *Router) handleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start":
		r.send(cid, "Send me a photo of a question and I'll answer it.\n"+
			"Caption a photo with \"math\" for a step-by-step solution.\n"+
			"Commands: /recent, /saved, /health")
	case "health":
		r.send(cid, "OK")
	case "recent":
		r.sendList(cid, func(ctx context.Context) ([]store.Question, error) {
			return r.Store.ListRecent(ctx, 5)
		}, "No questions yet.")
	case "saved":
		r.sendList(cid, func(ctx context.Context) ([]store.Question, error) {
			all, err := r.Store.List(ctx, nil)
			if err != nil {
				return nil, err
			}
			saved := all[:0:0]
			for _, q := range all {
				if q.IsSaved {
					saved = append(saved, q)
				}
			}
			return saved, nil
		}, "No saved questions.")
	default:
		if id, ok := strings.CutPrefix(upd.Message.Command(), "save_"); ok {
			r.toggleSave(cid, id)
			return
		}
		r.send(cid, "Unknown command")
	}
}

func (r *Router) toggleSave(cid int64, idArg string) {
	var id int
	if _, err := fmt.Sscanf(idArg, "%d", &id); err != nil {
		r.send(cid, "Usage: /save_<question id>")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := r.Store.ToggleSave(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.send(cid, fmt.Sprintf("Question #%d not found.", id))
			return
		}
		r.sendError(cid, err)
		return
	}
	if q.IsSaved {
		r.send(cid, fmt.Sprintf("Saved question #%d.", q.ID))
	} else {
		r.send(cid, fmt.Sprintf("Unsaved question #%d.", q.ID))
	}
}

func (r *Router) sendList(cid int64, fetch func(context.Context) ([]store.Question, error), empty string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	qs, err := fetch(ctx)
	if err != nil {
		r.sendError(cid, err)
		return
	}
	if len(qs) == 0 {
		r.send(cid, empty)
		return
	}
	var b strings.Builder
	for _, q := range qs {
		fmt.Fprintf(&b, "#%d [%s] %s\n→ %s\n\n", q.ID, q.QuestionType, truncate(q.OriginalText, 80), truncate(q.Answer, 120))
	}
	r.send(cid, strings.TrimSpace(b.String()))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = r.Bot.Send(msg)
}

func (r *Router) sendError(chatID int64, err error) {
	r.send(chatID, "Something went wrong: "+err.Error())
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
