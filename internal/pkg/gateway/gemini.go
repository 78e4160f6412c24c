package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
	"github.com/FACorreiaa/loci-planner/internal/app/observability/metrics"
)

var _ Searcher = (*GeminiSearcher)(nil)

// generateFunc sends a prompt to the model and returns its text.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// GeminiSearcher answers searches by asking a Gemini model to pick places
// from the candidate pool. It never invents places: names the model returns
// that are not in the pool are dropped.
type GeminiSearcher struct {
	generate generateFunc
	model    string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.AppMetrics
}

// NewGeminiSearcher creates the genai client for model.
func NewGeminiSearcher(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger, m *metrics.AppMetrics) (*GeminiSearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
	}
	generate := func(ctx context.Context, prompt string) (string, error) {
		result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
		if err != nil {
			return "", err
		}
		return result.Text(), nil
	}
	return newGeminiSearcher(generate, model, timeout, logger, m), nil
}

func newGeminiSearcher(generate generateFunc, model string, timeout time.Duration, logger *zap.Logger, m *metrics.AppMetrics) *GeminiSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiSearcher{
		generate: generate,
		model:    model,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
	}
}

// geminiAnswer is the JSON the prompt asks the model for.
type geminiAnswer struct {
	Results []string `json:"results"`
	Error   string   `json:"error"`
}

func (s *GeminiSearcher) SearchCandidates(ctx context.Context, query string, pool models.ResultSet) (models.ResultSet, error) {
	ctx, span := otel.Tracer("RecommendGateway").Start(ctx, "GeminiSearch")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", s.model),
		attribute.Int("pool.size", len(pool)),
	)

	if len(pool) == 0 {
		return models.ResultSet{}, nil
	}

	prompt, err := buildSearchPrompt(query, pool)
	if err != nil {
		return nil, &models.TransportError{Op: opSearch, Err: err}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.generate(ctx, prompt)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		s.metrics.ObserveGateway(ctx, "gemini_search", elapsed, "transport")
		return nil, &models.TransportError{Op: opSearch, Err: err}
	}

	var answer geminiAnswer
	if err := json.Unmarshal([]byte(cleanJSONResponse(text)), &answer); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable model answer")
		s.metrics.ObserveGateway(ctx, "gemini_search", elapsed, "transport")
		s.logger.Warn("Gemini answer is not valid JSON", zap.Int("length", len(text)), zap.Error(err))
		return nil, &models.TransportError{Op: opSearch, Err: fmt.Errorf("decoding model answer: %w", err)}
	}
	if answer.Error != "" {
		s.metrics.ObserveGateway(ctx, "gemini_search", elapsed, "server")
		return nil, &models.ServerError{Message: answer.Error}
	}

	results := pickFromPool(answer.Results, pool)
	s.metrics.ObserveGateway(ctx, "gemini_search", elapsed, "")
	span.SetAttributes(attribute.Int("results.count", len(results)))
	span.SetStatus(codes.Ok, "search completed")
	s.logger.Debug("Gemini search answered",
		zap.Int("returned", len(answer.Results)),
		zap.Int("matched", len(results)))
	return results, nil
}

func buildSearchPrompt(query string, pool models.ResultSet) (string, error) {
	candidates, err := json.Marshal(pool)
	if err != nil {
		return "", fmt.Errorf("encoding candidate pool: %w", err)
	}
	var b strings.Builder
	b.WriteString("You recommend places for a one-day trip.\n")
	b.WriteString("Choose the candidates that best match the traveller's request, best match first.\n")
	b.WriteString("Only use names that appear in the candidate list, spelled exactly as given.\n")
	b.WriteString(`Answer with JSON only: {"results": ["name", ...]}. `)
	b.WriteString(`If the request cannot be answered, answer {"error": "<short reason in the request's language>"}.` + "\n\n")
	b.WriteString("Request: ")
	b.WriteString(query)
	b.WriteString("\n\nCandidates:\n")
	b.Write(candidates)
	return b.String(), nil
}

// pickFromPool maps names back onto pool records in the model's order,
// skipping unknown and repeated names.
func pickFromPool(names []string, pool models.ResultSet) models.ResultSet {
	byName := make(map[string]models.Place, len(pool))
	for _, p := range pool {
		byName[p.Name] = p
	}
	out := make(models.ResultSet, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		p, ok := byName[n]
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, p)
	}
	return out
}

// cleanJSONResponse strips markdown fences and surrounding prose from a model
// answer, keeping the first balanced JSON object.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSpace(strings.TrimSuffix(response, "```"))

	first := strings.Index(response, "{")
	if first == -1 {
		return response
	}
	depth := 0
	inString := false
	escaped := false
	for i := first; i < len(response); i++ {
		ch := response[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return response[first : i+1]
			}
		}
	}
	return response[first:]
}
