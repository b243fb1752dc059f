// Package foodfacts provides the barcode and packaged-food search adapters:
// Open Food Facts for barcode lookup, with USDA FoodData Central as the
// text-search source for generic foods.
package foodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/glucobite/glucobite-api/internal/logger"
	"github.com/glucobite/glucobite-api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BarcodeClient looks up a packaged product by barcode.
type BarcodeClient interface {
	LookupBarcode(ctx context.Context, barcode string) (*models.FoodGroup, error)
}

// FoodSearchClient searches generic foods by name.
type FoodSearchClient interface {
	SearchFoods(ctx context.Context, query string, count int) (*models.FoodGroup, error)
}

// Client implements BarcodeClient and FoodSearchClient over HTTP.
type Client struct {
	userAgent    string
	fdcAPIKey    string
	httpClient   *http.Client
	fdcExhausted atomic.Bool
}

// NewClient creates a food-facts client. userAgent is required by the Open
// Food Facts usage policy; fdcAPIKey may be empty, disabling text search.
func NewClient(userAgent, fdcAPIKey string) *Client {
	return &Client{
		userAgent: userAgent,
		fdcAPIKey: fdcAPIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// --- Open Food Facts barcode lookup ---

const offProductEndpoint = "https://world.openfoodfacts.org/api/v2/product"

type offProductResponse struct {
	Status  int         `json:"status"`
	Product *offProduct `json:"product"`
}

type offProduct struct {
	ProductName     string        `json:"product_name"`
	Brands          string        `json:"brands"`
	ServingQuantity json.Number   `json:"serving_quantity"`
	ImageFrontURL   string        `json:"image_front_small_url"`
	Nutriments      offNutriments `json:"nutriments"`
}

type offNutriments struct {
	EnergyKcal100g *float64 `json:"energy-kcal_100g"`
	Carbs100g      *float64 `json:"carbohydrates_100g"`
	Protein100g    *float64 `json:"proteins_100g"`
	Fat100g        *float64 `json:"fat_100g"`
	Fiber100g      *float64 `json:"fiber_100g"`
	Sugars100g     *float64 `json:"sugars_100g"`
}

// LookupBarcode fetches one product from Open Food Facts and maps it to a
// single-item food group with barcode provenance.
func (c *Client) LookupBarcode(ctx context.Context, barcode string) (*models.FoodGroup, error) {
	reqURL := fmt.Sprintf("%s/%s.json?fields=product_name,brands,serving_quantity,image_front_small_url,nutriments",
		offProductEndpoint, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create OFF request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OFF request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFF response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("open food facts rate limit exceeded (status %d)", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no product found for barcode %s", barcode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OFF API returned status %d: %s", resp.StatusCode, string(body))
	}

	var pResp offProductResponse
	if err := json.Unmarshal(body, &pResp); err != nil {
		return nil, fmt.Errorf("failed to parse OFF response: %w", err)
	}
	if pResp.Status != 1 || pResp.Product == nil {
		return nil, fmt.Errorf("no product found for barcode %s", barcode)
	}

	p := pResp.Product
	name := p.ProductName
	if name == "" {
		name = "Unknown product"
	}
	if p.Brands != "" {
		name = fmt.Sprintf("%s (%s)", name, p.Brands)
	}

	item := models.FoodItem{
		ID:   uuid.New().String(),
		Name: name,
		Nutrition: models.Per100{Values: models.NutritionValues{
			Calories: p.Nutriments.EnergyKcal100g,
			Carbs:    p.Nutriments.Carbs100g,
			Protein:  p.Nutriments.Protein100g,
			Fat:      p.Nutriments.Fat100g,
			Fiber:    p.Nutriments.Fiber100g,
			Sugars:   p.Nutriments.Sugars100g,
		}},
		Source:   models.SourceBarcode,
		ImageURL: p.ImageFrontURL,
	}
	if grams, err := p.ServingQuantity.Float64(); err == nil && grams > 0 {
		item.PortionGrams = &grams
	}

	logger.Get().Info("barcode lookup resolved",
		zap.String("barcode", barcode),
		zap.String("product", name),
	)

	return &models.FoodGroup{
		ID:               uuid.New().String(),
		Source:           models.SourceBarcode,
		BriefDescription: name,
		Items:            []models.FoodItem{item},
	}, nil
}

// --- USDA FoodData Central text search ---

const fdcSearchEndpoint = "https://api.nal.usda.gov/fdc/v1/foods/search"

type fdcSearchResponse struct {
	Foods []fdcFood `json:"foods"`
}

type fdcFood struct {
	Description string        `json:"description"`
	BrandOwner  string        `json:"brandOwner"`
	Nutrients   []fdcNutrient `json:"foodNutrients"`
}

type fdcNutrient struct {
	Number string  `json:"nutrientNumber"`
	Value  float64 `json:"value"`
}

// USDA nutrient numbers, per the FDC data dictionary.
const (
	fdcNumEnergy  = "208"
	fdcNumCarbs   = "205"
	fdcNumProtein = "203"
	fdcNumFat     = "204"
	fdcNumFiber   = "291"
	fdcNumSugars  = "269"
)

// SearchFoods queries FDC and maps the top hits to a per-100g food group.
func (c *Client) SearchFoods(ctx context.Context, query string, count int) (*models.FoodGroup, error) {
	if c.fdcAPIKey == "" || c.fdcExhausted.Load() {
		return nil, fmt.Errorf("food search is not available")
	}
	if count <= 0 || count > 25 {
		count = 10
	}

	params := url.Values{}
	params.Set("api_key", c.fdcAPIKey)
	params.Set("query", query)
	params.Set("pageSize", fmt.Sprintf("%d", count))
	params.Set("dataType", "Foundation,SR Legacy,Branded")

	reqURL := fmt.Sprintf("%s?%s", fdcSearchEndpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create FDC request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FDC search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read FDC response: %w", err)
	}

	// 429 = hourly key quota exhausted
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 403 {
		c.fdcExhausted.Store(true)
		return nil, fmt.Errorf("FDC quota exhausted (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FDC API returned status %d: %s", resp.StatusCode, string(body))
	}

	var sResp fdcSearchResponse
	if err := json.Unmarshal(body, &sResp); err != nil {
		return nil, fmt.Errorf("failed to parse FDC response: %w", err)
	}

	group := &models.FoodGroup{
		ID:               uuid.New().String(),
		Source:           models.SourceSearch,
		TextQuery:        query,
		BriefDescription: fmt.Sprintf("Search results for %q", query),
	}
	for _, food := range sResp.Foods {
		name := food.Description
		if food.BrandOwner != "" {
			name = fmt.Sprintf("%s (%s)", name, food.BrandOwner)
		}
		group.Items = append(group.Items, models.FoodItem{
			ID:        uuid.New().String(),
			Name:      name,
			Nutrition: models.Per100{Values: nutrientsToValues(food.Nutrients)},
			Source:    models.SourceSearch,
		})
	}
	return group, nil
}

func nutrientsToValues(nutrients []fdcNutrient) models.NutritionValues {
	var values models.NutritionValues
	for _, n := range nutrients {
		v := n.Value
		switch n.Number {
		case fdcNumEnergy:
			values.Calories = &v
		case fdcNumCarbs:
			values.Carbs = &v
		case fdcNumProtein:
			values.Protein = &v
		case fdcNumFat:
			values.Fat = &v
		case fdcNumFiber:
			values.Fiber = &v
		case fdcNumSugars:
			values.Sugars = &v
		}
	}
	return values
}
