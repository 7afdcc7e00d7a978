// Package solver builds the prompt for a recognized question, calls the
// answer-generation service, validates the structured response and persists
// the finished record. Nothing is persisted for a failed solve.
package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"snap-solve/api/internal/store"
	"snap-solve/api/internal/util"
)

var (
	// ErrAnswerGeneration covers any failure of the external service:
	// timeout, non-2xx, empty or unusable payload. Never retried here;
	// retry is a caller-side policy.
	ErrAnswerGeneration = errors.New("failed to generate answer")

	// ErrMalformedAnswer is the payload-level subset: the response did not
	// parse as JSON or lacks the answer field.
	ErrMalformedAnswer = fmt.Errorf("%w: malformed answer payload", ErrAnswerGeneration)
)

// manualConfidence is recorded when the question text was typed in rather
// than recognized from a photo.
const manualConfidence = 95

// ChatCompleter is the answer-generation service collaborator.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Orchestrator is a stateless transformation plus a call-through to the
// store; safe for concurrent use.
type Orchestrator struct {
	llm   ChatCompleter
	store store.QuestionStore
}

func New(llm ChatCompleter, st store.QuestionStore) *Orchestrator {
	return &Orchestrator{llm: llm, store: st}
}

// Options carry per-submission context for Solve.
type Options struct {
	UserID *int
	// Confidence is the OCR confidence (0-100) when the text came from
	// recognition; nil means manual input.
	Confidence *int
}

// Answer is the validated, normalized service response.
type Answer struct {
	Answer       string       `json:"answer"`
	Steps        []store.Step `json:"steps"`
	QuestionType string       `json:"questionType"`
}

// SolveResult is what a solve hands back to the surface that requested it.
type SolveResult struct {
	ID int `json:"id"`
	Answer
}

// Solve generates a structured answer for text and persists the record.
// Step order is kept exactly as the service returned it.
func (o *Orchestrator) Solve(ctx context.Context, text, questionType string, opts Options) (SolveResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SolveResult{}, fmt.Errorf("%w: question text is empty", ErrAnswerGeneration)
	}

	system, user := buildPrompts(text, questionType)

	content, err := o.llm.Complete(ctx, system, user)
	if err != nil {
		return SolveResult{}, fmt.Errorf("%w: %v", ErrAnswerGeneration, err)
	}

	ans, err := parseAnswer(content)
	if err != nil {
		return SolveResult{}, err
	}
	if ans.QuestionType == "" {
		ans.QuestionType = questionType
	}
	if ans.QuestionType == "" {
		ans.QuestionType = "general"
	}

	confidence := opts.Confidence
	if confidence == nil {
		c := manualConfidence
		confidence = &c
	}

	q, err := o.store.Create(ctx, store.InsertQuestion{
		UserID:       opts.UserID,
		OriginalText: text,
		QuestionType: ans.QuestionType,
		Answer:       ans.Answer,
		Steps:        ans.Steps,
		Confidence:   confidence,
		IsSaved:      false,
	})
	if err != nil {
		return SolveResult{}, fmt.Errorf("save question: %w", err)
	}

	log.Printf("solved question %d type=%s steps=%d", q.ID, ans.QuestionType, len(ans.Steps))
	return SolveResult{ID: q.ID, Answer: ans}, nil
}

func buildPrompts(text, questionType string) (system, user string) {
	if questionType == "math" {
		system = `You are a math tutor that provides step-by-step solutions. For any math problem, provide:
1. The final answer
2. Step-by-step solution with explanations
3. Each step should be clear and educational

Respond with JSON in this exact format:
{
  "answer": "final answer here",
  "steps": [
    {
      "stepNumber": 1,
      "title": "Step title",
      "explanation": "What we're doing in this step",
      "calculation": "The mathematical operation",
      "result": "Result of this step"
    }
  ],
  "questionType": "math"
}`
		user = "Solve this math problem step by step: " + text
		return system, user
	}

	system = `You are a knowledgeable assistant that answers questions clearly and concisely. Provide accurate, helpful information.

Respond with JSON in this exact format:
{
  "answer": "your detailed answer here",
  "steps": [],
  "questionType": "general"
}`
	user = "Answer this question: " + text
	return system, user
}

func parseAnswer(content string) (Answer, error) {
	content = util.StripCodeFences(content)

	var ans Answer
	if err := json.Unmarshal([]byte(content), &ans); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
	}
	if strings.TrimSpace(ans.Answer) == "" {
		return Answer{}, fmt.Errorf("%w: missing answer field", ErrMalformedAnswer)
	}
	if ans.Steps == nil {
		ans.Steps = []store.Step{}
	}
	return ans, nil
}
