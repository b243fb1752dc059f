package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glucobite/glucobite-api/internal/config"
	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIFoodProvider implements TextProvider using GPT-4o via function
// calling. It is the fallback text channel when Claude is unavailable.
type OpenAIFoodProvider struct {
	apiKey  string
	prompts *config.Prompts
}

// NewOpenAIFoodProvider creates the fallback text-analysis provider.
func NewOpenAIFoodProvider(apiKey string, prompts *config.Prompts) *OpenAIFoodProvider {
	return &OpenAIFoodProvider{apiKey: apiKey, prompts: prompts}
}

// foodReportFunction mirrors the Claude report_food_items tool as an OpenAI
// function definition.
var foodReportFunction = openai.FunctionDefinition{
	Name:        "report_food_items",
	Description: "Report every identified food item with structured nutrition data.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"brief_description": {"type": "string"},
			"overall_description": {"type": "string"},
			"diabetes_considerations": {"type": "string"},
			"items": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"name": {"type": "string"},
						"nutrition_basis": {"type": "string", "enum": ["per_100", "per_serving"]},
						"calories": {"type": "number"},
						"carbs": {"type": "number"},
						"protein": {"type": "number"},
						"fat": {"type": "number"},
						"fiber": {"type": "number"},
						"sugars": {"type": "number"},
						"portion_grams": {"type": "number"},
						"servings_multiplier": {"type": "number"},
						"confidence": {"type": "string", "enum": ["high", "medium", "low"]},
						"tags": {"type": "array", "items": {"type": "string"}}
					},
					"required": ["name", "nutrition_basis"]
				}
			}
		},
		"required": ["items"]
	}`),
}

// AnalyzeFoodText identifies the foods described in free-form text.
func (p *OpenAIFoodProvider) AnalyzeFoodText(ctx context.Context, text string) (*models.FoodGroup, error) {
	sysPrompt, err := config.RenderPrompt(p.prompts.Analyze.Text.System, map[string]interface{}{
		"Guidance": p.prompts.Diabetes.System,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	userPrompt, err := config.RenderPrompt(p.prompts.Analyze.Text.User, map[string]interface{}{
		"Text": text,
	})
	if err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	client := openai.NewClient(p.apiKey)
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sysPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			Tools: []openai.Tool{
				{Type: openai.ToolTypeFunction, Function: &foodReportFunction},
			},
			ToolChoice: openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: foodReportFunction.Name},
			},
		})
		if err == nil {
			return parseFoodCompletion(&resp, text)
		}

		lastErr = err
		shouldRetry, waitTime := classifyOpenAIError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("openai API error: %w", err)
		}

		logger.Get().Warn("openai API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime * time.Duration(i+1)):
			}
		}
	}

	return nil, fmt.Errorf("openai API: exhausted %d retries: %w", maxRetries, lastErr)
}

func parseFoodCompletion(resp *openai.ChatCompletionResponse, textQuery string) (*models.FoodGroup, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai API returned no choices")
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, errors.New("openai API returned no tool call")
	}

	var report foodReport
	if err := json.Unmarshal([]byte(calls[0].Function.Arguments), &report); err != nil {
		return nil, fmt.Errorf("failed to parse food report: %w", err)
	}
	return reportToFoodGroup(&report, models.SourceAIText, textQuery, ""), nil
}

// classifyOpenAIError determines whether an OpenAI API error is retryable
// server-side trouble. Rate limits are not retried here; the orchestrator
// surfaces them with the explicit wait-and-retry affordance.
func classifyOpenAIError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 500, 502, 503:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}
