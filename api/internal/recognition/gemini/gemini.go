// Package gemini implements the recognition engine on Gemini's multimodal
// API: the photo goes up, strict JSON with the extracted text comes back.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"snap-solve/api/internal/recognition"
	"snap-solve/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string

	cfg recognition.Config
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Load(_ context.Context, cfg recognition.Config) error {
	if e.APIKey == "" {
		return errors.New("GEMINI_API_KEY is empty")
	}
	if e.Model == "" {
		return errors.New("gemini model is empty")
	}
	e.cfg = cfg
	return nil
}

func (e *Engine) Unload() error { return nil }

// Recognize asks the model to transcribe the photographed question verbatim
// and report its own confidence. Returns strict JSON {text, confidence}.
func (e *Engine) Recognize(ctx context.Context, image []byte) (recognition.Result, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return recognition.Result{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(e.systemPrompt())},
	}

	parts := []genai.Part{
		genai.Text("Transcribe the question on this photo. Reply with JSON only."),
		&genai.Blob{MIMEType: util.SniffMimeHTTP(image), Data: image},
	}

	// Small retry loop for transient 5xx failures.
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return recognition.Result{}, ctx.Err()
			}
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return recognition.Result{}, errors.New("gemini: empty response")
		}
		txt = util.StripCodeFences(txt)

		var out struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(txt), &out); err != nil {
			return recognition.Result{}, fmt.Errorf("gemini: bad JSON: %w", err)
		}
		return recognition.Result{Text: out.Text, Confidence: out.Confidence}, nil
	}
	return recognition.Result{}, lastErr
}

func (e *Engine) systemPrompt() string {
	var b strings.Builder
	b.WriteString(`You transcribe a PHOTO of a single question (math or general knowledge).
Copy the text exactly as printed: no solving, no corrections, no additions.
The photo contains one block of text, not a full page layout.
Return STRICT JSON:
{
  "text": string,        // the transcribed question text
  "confidence": number   // 0..100, how sure you are of the transcription
}
Any text outside the JSON is an error.`)
	if e.cfg.CharWhitelist != "" {
		b.WriteString("\nThe text only contains these characters: ")
		b.WriteString(e.cfg.CharWhitelist)
	}
	return b.String()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			return strings.TrimSpace(string(t))
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
