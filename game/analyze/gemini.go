package analyze

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sketchmon/arena/config"
	"github.com/sketchmon/arena/game/balance"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

//go:embed prompts/analyze.txt
var analyzePrompt string

// GeminiAnalyzer asks a Gemini vision model for the stat proposal.
type GeminiAnalyzer struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	maxEdge int
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiAnalyzer(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	model := client.GenerativeModel(cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.4)
	return &GeminiAnalyzer{
		client:  client,
		model:   model,
		maxEdge: cfg.ImageMaxEdge,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (g *GeminiAnalyzer) Close() error {
	return g.client.Close()
}

// Analyze sends the downscaled sketch and the analysis prompt in one request.
// mime is only used for logging; the image is always re-encoded as PNG.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, image []byte, mime string) (balance.RawStats, error) {
	img, err := Preprocess(image, g.maxEdge)
	if err != nil {
		return balance.RawStats{}, err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, genai.Text(analyzePrompt), genai.ImageData("png", img))
	if err != nil {
		return balance.RawStats{}, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return balance.RawStats{}, ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return balance.RawStats{}, ErrEmptyResponse
	}

	raw, err := ParseResponse(sb.String())
	if err != nil {
		g.logger.Warn("unparseable analysis reply", zap.String("reply", sb.String()))
		return balance.RawStats{}, err
	}
	g.logger.Debug("sketch analyzed",
		zap.String("mime", mime),
		zap.Int("upload_bytes", len(image)),
		zap.Int("sent_bytes", len(img)),
		zap.String("name", raw.Name),
		zap.Duration("took", time.Since(start)))
	return raw, nil
}
