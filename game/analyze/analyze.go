// Package analyze turns an uploaded monster sketch into a raw stat proposal.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sketchmon/arena/game/balance"
)

//go:generate go tool mockgen -destination=./mocks/analyzer_mock.go -package=mocks . Analyzer

var (
	ErrEmptyImage    = errors.New("analyze: empty image")
	ErrBadImage      = errors.New("analyze: cannot decode image")
	ErrEmptyResponse = errors.New("analyze: model returned no content")
	ErrBadResponse   = errors.New("analyze: model response is not a stat object")
)

// Analyzer proposes unbalanced stats for a sketch.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mime string) (balance.RawStats, error)
}

// Fallback is used whenever analysis fails so monster creation never blocks
// on the model.
func Fallback() balance.RawStats {
	return balance.RawStats{
		Name:        "Glitch Beast",
		Attack:      5,
		Defense:     5,
		Speed:       5,
		Health:      50,
		Description: "A creature born from analysis errors.",
	}
}

// AnalyzeOrFallback runs a and substitutes Fallback on failure. The analysis
// error is still returned so the caller can log it.
func AnalyzeOrFallback(ctx context.Context, a Analyzer, image []byte, mime string) (balance.RawStats, error) {
	if a == nil {
		return Fallback(), errors.New("analyze: no analyzer configured")
	}
	raw, err := a.Analyze(ctx, image, mime)
	if err != nil {
		return Fallback(), err
	}
	return raw, nil
}

// Preprocess decodes the upload, shrinks it to fit maxEdge on both sides
// and re-encodes it as PNG. Smaller images are only re-encoded.
func Preprocess(data []byte, maxEdge int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if maxEdge > 0 {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseResponse extracts the stat object from a model reply. Markdown fences
// and chatter around the object are ignored.
func ParseResponse(text string) (balance.RawStats, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return balance.RawStats{}, ErrBadResponse
	}

	var reply struct {
		Name        string      `json:"name"`
		Type        string      `json:"type"`
		Attack      json.Number `json:"attack"`
		Defense     json.Number `json:"defense"`
		Speed       json.Number `json:"speed"`
		Health      json.Number `json:"health"`
		Description string      `json:"description"`
	}
	dec := json.NewDecoder(strings.NewReader(s[start : end+1]))
	dec.UseNumber()
	if err := dec.Decode(&reply); err != nil {
		return balance.RawStats{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return balance.RawStats{
		Name:        reply.Name,
		Type:        reply.Type,
		Attack:      number(reply.Attack),
		Defense:     number(reply.Defense),
		Speed:       number(reply.Speed),
		Health:      number(reply.Health),
		Description: reply.Description,
	}, nil
}

// number maps a missing or malformed value to 0, which the balancer clamps.
func number(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}
