package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is what the grading collaborator returns for one answer. It feeds
// the answer row only; the session core never sees it.
type Result struct {
	Grade     float64 `json:"grade"` // 0..5
	Feedback  string  `json:"feedback"`
	IsCorrect bool    `json:"isCorrect"`
}

type Grader interface {
	Grade(ctx context.Context, questionPrompt, answerText, language string) (Result, error)
}

// HTTPGrader posts answers to a remote grading endpoint.
type HTTPGrader struct {
	URL    string
	Client *http.Client
}

func NewHTTPGrader(url string) *HTTPGrader {
	return &HTTPGrader{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

type gradeRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Language string `json:"language,omitempty"`
}

func (g *HTTPGrader) Grade(ctx context.Context, questionPrompt, answerText, language string) (Result, error) {
	body, err := json.Marshal(gradeRequest{
		Question: questionPrompt,
		Answer:   answerText,
		Language: language,
	})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("grading API returned %d", resp.StatusCode)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, err
	}
	return out, nil
}
