package server

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// Prompt is one drawable subject. Categories mirror the scorer's phrasing
// buckets and ride along in round broadcasts.
type Prompt struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

type promptList struct {
	prompts []Prompt
}

// loadPrompts reads the prompt file, falling back to the built-in list when
// the path is empty or missing.
func loadPrompts(path string) (*promptList, error) {
	if path == "" {
		return &promptList{prompts: builtinPrompts}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &promptList{prompts: builtinPrompts}, nil
		}
		return nil, fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}
	var prompts []Prompt
	if err := json.Unmarshal(raw, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}
	prompts = sanitizePrompts(prompts)
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompt file %s contains no usable prompts", path)
	}
	return &promptList{prompts: prompts}, nil
}

func sanitizePrompts(prompts []Prompt) []Prompt {
	out := make([]Prompt, 0, len(prompts))
	seen := make(map[string]struct{}, len(prompts))
	for _, prompt := range prompts {
		text := strings.TrimSpace(prompt.Text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(prompt.ID) == "" {
			prompt.ID = key
		}
		prompt.Text = text
		out = append(out, prompt)
	}
	return out
}

// Pick selects uniformly at random. Repeats across rounds are allowed.
func (p *promptList) Pick() Prompt {
	return p.prompts[rand.Intn(len(p.prompts))]
}

var builtinPrompts = []Prompt{
	{ID: "cat", Text: "a cat", Category: "animals"},
	{ID: "dog", Text: "a dog", Category: "animals"},
	{ID: "fish", Text: "a fish", Category: "animals"},
	{ID: "duck", Text: "a duck", Category: "animals"},
	{ID: "house", Text: "a house", Category: "places"},
	{ID: "castle", Text: "a castle", Category: "places"},
	{ID: "lighthouse", Text: "a lighthouse", Category: "places"},
	{ID: "bicycle", Text: "a bicycle", Category: "things"},
	{ID: "umbrella", Text: "an umbrella", Category: "things"},
	{ID: "rocket", Text: "a rocket", Category: "things"},
	{ID: "guitar", Text: "a guitar", Category: "things"},
	{ID: "pizza", Text: "a pizza slice", Category: "food"},
	{ID: "banana", Text: "a banana", Category: "food"},
	{ID: "ice-cream", Text: "an ice cream cone", Category: "food"},
	{ID: "snowman", Text: "a snowman", Category: "seasonal"},
	{ID: "sunflower", Text: "a sunflower", Category: "nature"},
	{ID: "mountain", Text: "a mountain", Category: "nature"},
	{ID: "rainbow", Text: "a rainbow", Category: "nature"},
}
