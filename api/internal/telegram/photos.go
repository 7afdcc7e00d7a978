package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snap-solve/api/internal/solver"
)

const photoTimeout = 120 * time.Second

// acceptPhoto downloads the largest photo size and runs it through the
// pipeline. A "math" caption forces the step-by-step prompt.
func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID

	ph := msg.Photo[len(msg.Photo)-1]
	file, err := r.Bot.GetFile(tgbotapi.FileConfig{FileID: ph.FileID})
	if err != nil {
		r.sendError(cid, err)
		return
	}
	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", r.Bot.Token, file.FilePath)
	img, err := download(url)
	if err != nil {
		r.sendError(cid, err)
		return
	}

	r.send(cid, "Got the photo, reading it…")

	questionType := "general"
	if strings.Contains(strings.ToLower(msg.Caption), "math") {
		questionType = "math"
	}

	ctx, cancel := context.WithTimeout(context.Background(), photoTimeout)
	defer cancel()

	res, err := r.Pipe.ProcessImage(ctx, img, questionType, solver.Options{}, nil)
	if err != nil {
		r.sendError(cid, err)
		return
	}
	r.send(cid, formatResult(res))
}

func (r *Router) solveText(cid int64, text string) {
	questionType := "general"
	if looksLikeMath(text) {
		questionType = "math"
	}

	ctx, cancel := context.WithTimeout(context.Background(), photoTimeout)
	defer cancel()

	res, err := r.Pipe.Solver.Solve(ctx, text, questionType, solver.Options{})
	if err != nil {
		r.sendError(cid, err)
		return
	}
	r.send(cid, formatResult(res))
}

func formatResult(res solver.SolveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Answer: %s\n", res.Answer.Answer)
	for _, st := range res.Steps {
		fmt.Fprintf(&b, "\n%d. %s\n%s", st.StepNumber, st.Title, st.Explanation)
		if st.Calculation != "" {
			fmt.Fprintf(&b, "\n%s", st.Calculation)
		}
		if st.Result != "" {
			fmt.Fprintf(&b, " = %s", st.Result)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n#%d (reply /save_%d to keep it)", res.ID, res.ID)
	return strings.TrimSpace(b.String())
}

// looksLikeMath is a cheap guess for typed-in questions; photos carry an
// explicit caption instead.
func looksLikeMath(s string) bool {
	return strings.ContainsAny(s, "0123456789") && strings.ContainsAny(s, "+-*/=^")
}

func download(url string) ([]byte, error) {
	cl := &http.Client{Timeout: 30 * time.Second}
	resp, err := cl.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download photo: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
