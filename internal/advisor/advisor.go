package advisor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog/log"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/strategy"
)

// ErrMalformedRecommendation is returned when the provider reply is not a valid
// {rec, score, insight} object.
var ErrMalformedRecommendation = errors.New("malformed recommendation response")

const systemPrompt = "You are a concise equity analyst. Reply with a single JSON object " +
	`{"rec": "BUY"|"SELL"|"HOLD", "score": 0-100, "insight": "one sentence"} and nothing else.`

// Config holds the advisory provider settings. An empty APIKey disables the provider.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Advisor produces recommendations from an OpenAI-compatible chat model, substituting the
// heuristic engine whenever the provider is unconfigured, unreachable or malformed.
type Advisor struct {
	engine   *strategy.Engine
	client   *openai.Client
	model    string
	timeout  time.Duration
	validate *validator.Validate
}

// New creates an Advisor. Extra request options are appended after the config derived ones.
func New(cfg Config, engine *strategy.Engine, opts ...option.RequestOption) *Advisor {
	if engine == nil {
		engine = strategy.NewEngine()
	}
	a := &Advisor{
		engine:   engine,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		validate: validator.New(),
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return a
	}
	if a.model == "" {
		a.model = "gpt-4o-mini"
	}
	oaOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		oaOpts = append(oaOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		oaOpts = append(oaOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := openai.NewClient(append(oaOpts, opts...)...)
	a.client = &client
	return a
}

// Enabled reports whether a provider is configured.
func (a *Advisor) Enabled() bool { return a.client != nil }

// Recommend scores a resolved entry. It never fails: the heuristic result is returned when
// the provider cannot produce a valid answer.
func (a *Advisor) Recommend(ctx context.Context, entry model.CacheEntry) model.Recommendation {
	heuristic := a.engine.Score(entry.Key.Symbol, entry.Series)
	if a.client == nil {
		return heuristic
	}

	rec, err := a.ask(ctx, entry)
	if err != nil {
		event := log.Warn()
		if errors.Is(err, ErrMalformedRecommendation) {
			event = log.Error()
		}
		event.Err(err).Str("symbol", entry.Key.Symbol).Msg("advisor unavailable, using heuristic")
		return heuristic
	}
	rec.Support = heuristic.Support
	rec.Resistance = heuristic.Resistance
	return rec
}

// ScoreManual delegates to the heuristic engine; a single price carries too little context
// for the provider.
func (a *Advisor) ScoreManual(symbol string, price float64) model.Recommendation {
	return a.engine.ScoreManual(symbol, price)
}

type prompt struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PercentChange float64 `json:"percent_change"`
	Timeframe     string  `json:"timeframe"`
	Simulated     bool    `json:"simulated,omitempty"`
}

type reply struct {
	Rec     string   `json:"rec" validate:"required"`
	Score   *float64 `json:"score" validate:"required,min=0,max=100"`
	Insight string   `json:"insight" validate:"required"`
}

func (a *Advisor) ask(ctx context.Context, entry model.CacheEntry) (model.Recommendation, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	body, err := json.Marshal(prompt{
		Symbol:        entry.Key.Symbol,
		Price:         entry.Stats.Price,
		PercentChange: entry.Stats.PercentChange,
		Timeframe:     string(entry.Key.Timeframe),
		Simulated:     entry.Simulated,
	})
	if err != nil {
		return model.Recommendation{}, fmt.Errorf("encode prompt: %w", err)
	}

	format := shared.NewResponseFormatJSONObjectParam()
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(body)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &format},
	})
	if err != nil {
		return model.Recommendation{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Recommendation{}, fmt.Errorf("%w: no choices", ErrMalformedRecommendation)
	}
	return a.parse(resp.Choices[0].Message.Content)
}

func (a *Advisor) parse(content string) (model.Recommendation, error) {
	var r reply
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &r); err != nil {
		return model.Recommendation{}, fmt.Errorf("%w: %v", ErrMalformedRecommendation, err)
	}
	r.Rec = strings.ToUpper(strings.TrimSpace(r.Rec))
	r.Insight = strings.TrimSpace(r.Insight)
	if err := a.validate.Struct(r); err != nil {
		return model.Recommendation{}, fmt.Errorf("%w: %v", ErrMalformedRecommendation, err)
	}
	verdict := model.Verdict(r.Rec)
	if !verdict.Valid() {
		return model.Recommendation{}, fmt.Errorf("%w: unknown verdict %q", ErrMalformedRecommendation, r.Rec)
	}
	return model.Recommendation{
		Verdict: verdict,
		Score:   int(math.Round(*r.Score)),
		Insight: r.Insight,
		Source:  model.SourceAdvisor,
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
