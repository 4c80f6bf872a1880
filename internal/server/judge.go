package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// judgeClient calls the external scoring service. Every image of a round is
// scored in parallel, each call bounded by the configured timeout. One failed
// call fails the whole attempt; the attempt then falls back to a random
// winner so the round always completes.
type judgeClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     zerolog.Logger
}

func newJudgeClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *judgeClient {
	return &judgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}
}

type scoreImageRequest struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

type scoreImageResponse struct {
	ConfidencePercent json.RawMessage `json:"confidence_percent"`
}

func (c *judgeClient) Judge(ctx context.Context, prompt string, submissions []Submission) RoundResult {
	scores := make([]ScoreEntry, len(submissions))
	errs := make([]error, len(submissions))

	var wg sync.WaitGroup
	for i := range submissions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			score, err := c.scoreImage(ctx, prompt, submissions[i].Image)
			if err != nil {
				errs[i] = err
				return
			}
			scores[i] = ScoreEntry{
				ImageIndex: i,
				PlayerID:   submissions[i].PlayerID,
				Nickname:   submissions[i].Nickname,
				Score:      score,
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			c.log.Warn().Err(err).Int("image_index", i).Msg("scoring failed, falling back")
			return fallbackResult(prompt, submissions, err)
		}
	}

	winner := 0
	best := math.Inf(-1)
	for i := range scores {
		if scores[i].Score > best {
			best = scores[i].Score
			winner = i
		}
	}
	return RoundResult{
		Prompt:      prompt,
		WinnerID:    submissions[winner].PlayerID,
		WinnerIndex: winner,
		Scores:      scores,
	}
}

func (c *judgeClient) scoreImage(ctx context.Context, prompt string, image []byte) (float64, error) {
	payload, err := json.Marshal(scoreImageRequest{
		Prompt: prompt,
		Image:  base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to build scoring request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/score-image", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach scoring service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read scoring response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("scoring service error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed scoreImageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse scoring response: %w", err)
	}
	return coerceScore(parsed.ConfidencePercent), nil
}

// coerceScore turns whatever the scorer put in confidence_percent into a
// number, treating anything missing or non-numeric as 0.
func coerceScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if number, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return number
		}
	}
	return 0
}

// fallbackResult picks a uniformly random winner, scores it 1 and everyone
// else 0, and carries the triggering error so clients can show why.
func fallbackResult(prompt string, submissions []Submission, cause error) RoundResult {
	winner := rand.Intn(len(submissions))
	scores := make([]ScoreEntry, len(submissions))
	for i := range submissions {
		score := 0.0
		if i == winner {
			score = 1
		}
		scores[i] = ScoreEntry{
			ImageIndex: i,
			PlayerID:   submissions[i].PlayerID,
			Nickname:   submissions[i].Nickname,
			Score:      score,
		}
	}
	return RoundResult{
		Prompt:      prompt,
		WinnerID:    submissions[winner].PlayerID,
		WinnerIndex: winner,
		Scores:      scores,
		IsFallback:  true,
		Error:       cause.Error(),
	}
}
