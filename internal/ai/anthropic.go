package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/glucobite/glucobite-api/internal/config"
	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/models"
	"go.uber.org/zap"
)

// AnthropicProvider implements VisionProvider and TextProvider using Claude.
type AnthropicProvider struct {
	client  anthropic.Client
	model   anthropic.Model
	prompts *config.Prompts
}

// NewAnthropicProvider creates a new AnthropicProvider with the given API key
// and prompt configuration.
func NewAnthropicProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.ModelClaude3_5Sonnet20241022,
		prompts: prompts,
	}
}

// NewAnthropicLightProvider creates an AnthropicProvider using the cheaper
// Haiku model. Suitable for quick text lookups where cost matters more than
// maximum quality.
func NewAnthropicLightProvider(apiKey string, prompts *config.Prompts) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client:  client,
		model:   anthropic.Model("claude-haiku-4-5-20251001"),
		prompts: prompts,
	}
}

// reportFoodItemsTool builds the Claude tool definition for structured food
// reporting. itemGuidance tunes the per-item description per analysis kind.
func reportFoodItemsTool(itemGuidance string) anthropic.ToolUnionParam {
	numberOrNull := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"type":        "number",
			"description": desc + " Omit entirely when unknown; never guess 0 for an unknown value.",
		}
	}
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        "report_food_items",
			Description: anthropic.String("Report every identified food item with structured nutrition data."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]interface{}{
					"brief_description": map[string]interface{}{
						"type":        "string",
						"description": "One short phrase naming what was analyzed (e.g. 'Plate with rice and chicken')",
					},
					"overall_description": map[string]interface{}{
						"type":        "string",
						"description": "Two or three sentences describing the foods found",
					},
					"diabetes_considerations": map[string]interface{}{
						"type":        "string",
						"description": "Short note on how this meal affects blood glucose (fast vs slow carbs, fat delaying absorption)",
					},
					"items": map[string]interface{}{
						"type":        "array",
						"description": itemGuidance,
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"name": map[string]interface{}{"type": "string", "description": "Display name of the food, no portion or amount in this field"},
								"nutrition_basis": map[string]interface{}{
									"type":        "string",
									"description": "Whether the nutrient figures are per 100 g/ml or per one standard serving",
									"enum":        []string{"per_100", "per_serving"},
								},
								"calories": numberOrNull("Energy in kcal on the stated basis."),
								"carbs":    numberOrNull("Carbohydrates in grams on the stated basis."),
								"protein":  numberOrNull("Protein in grams on the stated basis."),
								"fat":      numberOrNull("Fat in grams on the stated basis."),
								"fiber":    numberOrNull("Fiber in grams on the stated basis."),
								"sugars":   numberOrNull("Sugars in grams on the stated basis."),
								"portion_grams": map[string]interface{}{
									"type":        "number",
									"description": "Estimated portion in grams for per_100 items, judged from the image or text",
								},
								"servings_multiplier": map[string]interface{}{
									"type":        "number",
									"description": "Estimated number of servings for per_serving items",
								},
								"confidence": map[string]interface{}{
									"type":        "string",
									"description": "How confident the identification and figures are",
									"enum":        []string{"high", "medium", "low"},
								},
								"tags": map[string]interface{}{
									"type":        "array",
									"description": "Free-form labels such as 'fruit', 'fried', 'breakfast'. Lowercase, no '#'.",
									"items":       map[string]interface{}{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}
}

// newUserMessage creates a user message param with the given content blocks.
func newUserMessage(blocks ...anthropic.ContentBlockParamUnion) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleUser,
		Content: blocks,
	}
}

// createMessageWithRetry wraps the Claude API call with exponential backoff
// for server-side errors. Rate-limit and quota failures are returned to the
// orchestrator for classification instead of being retried here.
func (p *AnthropicProvider) createMessageWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.Messages.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyAnthropicError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("claude API error: %w", err)
		}

		logger.Get().Warn("claude API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		backoff := waitTime * time.Duration(i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("claude API: exhausted %d retries: %w", maxRetries, lastErr)
}

// classifyAnthropicError determines whether to retry and the base wait duration.
func classifyAnthropicError(err error) (shouldRetry bool, waitTime time.Duration) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return true, 2 * time.Second
		default:
			return false, 0
		}
	}
	return false, 0
}

// extractFoodReport parses the tool-use content block returned by Claude.
func extractFoodReport(msg *anthropic.Message) (*foodReport, error) {
	for _, block := range msg.Content {
		if block.Type == "tool_use" {
			raw, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			var report foodReport
			if err := json.Unmarshal(raw, &report); err != nil {
				return nil, fmt.Errorf("failed to parse food report: %w", err)
			}
			return &report, nil
		}
	}
	return nil, errors.New("no tool_use block found in Claude response")
}

// analyzeImage runs one image analysis with the given prompt pair and source.
func (p *AnthropicProvider) analyzeImage(ctx context.Context, pair config.PromptPair, source models.FoodSource, imageData []byte, hint string) (*models.FoodGroup, error) {
	sysPrompt, err := config.RenderPrompt(pair.System, map[string]interface{}{
		"Guidance": p.prompts.Diabetes.System,
	})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	userPrompt, err := config.RenderPrompt(pair.User, map[string]interface{}{
		"Hint": hint,
	})
	if err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(imageData)
	mediaType := detectImageMediaType(imageData)
	tool := reportFoodItemsTool(p.prompts.ItemReporting.System)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(
				anthropic.ContentBlockParamUnion{
					OfRequestImageBlock: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfBase64ImageSource: &anthropic.Base64ImageSourceParam{
								MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
								Data:      b64,
							},
						},
					},
				},
				anthropic.NewTextBlock(userPrompt),
			),
		},
		Tools: []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "report_food_items",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	report, err := extractFoodReport(resp)
	if err != nil {
		return nil, err
	}
	return reportToFoodGroup(report, source, "", ""), nil
}

// AnalyzeFoodPhoto identifies the foods on a photo of a plate or meal.
func (p *AnthropicProvider) AnalyzeFoodPhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error) {
	return p.analyzeImage(ctx, p.prompts.Analyze.Photo, models.SourceAIPhoto, imageData, hint)
}

// AnalyzeMenuPhoto identifies the foods described on a photographed menu.
func (p *AnthropicProvider) AnalyzeMenuPhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error) {
	return p.analyzeImage(ctx, p.prompts.Analyze.Menu, models.SourceAIMenu, imageData, hint)
}

// AnalyzeRecipePhoto identifies the foods in a photographed recipe.
func (p *AnthropicProvider) AnalyzeRecipePhoto(ctx context.Context, imageData []byte, hint string) (*models.FoodGroup, error) {
	return p.analyzeImage(ctx, p.prompts.Analyze.Recipe, models.SourceAIRecipe, imageData, hint)
}

// AnalyzeFoodText identifies the foods described in free-form text.
func (p *AnthropicProvider) AnalyzeFoodText(ctx context.Context, text string) (*models.FoodGroup, error) {
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

	tool := reportFoodItemsTool(p.prompts.ItemReporting.System)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: sysPrompt},
		},
		Messages: []anthropic.MessageParam{
			newUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
		Tools: []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfToolChoiceTool: &anthropic.ToolChoiceToolParam{
				Name: "report_food_items",
			},
		},
	}

	resp, err := p.createMessageWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	report, err := extractFoodReport(resp)
	if err != nil {
		return nil, err
	}
	return reportToFoodGroup(report, models.SourceAIText, text, ""), nil
}

// detectImageMediaType returns the MIME type based on magic bytes.
func detectImageMediaType(data []byte) string {
	if len(data) < 4 {
		return "image/jpeg"
	}
	// PNG magic bytes
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 {
		return "image/gif"
	}
	// WebP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "image/jpeg"
}
