// Package pos contains the external POS provider adapters. Each adapter
// converts between the provider wire schema and the normalized domain
// types, and classifies provider failures into the engine's error taxonomy.
package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

const providerShopify = "shopify"

// ShopifyConfig carries the app credentials and catalog settings for the
// Shopify adapter.
type ShopifyConfig struct {
	APIKey      string
	APISecret   string
	RedirectURI string
	Scopes      []string
	// LocationID is the Shopify location inventory writes are applied to.
	LocationID uint64
	// Currency is stamped on imported items; Shopify reports prices
	// without a per-product currency.
	Currency string
	// PageSize is the catalog page size, capped by Shopify at 250.
	PageSize int
}

// ShopifyAdapter implements ports.PosAdapter on top of the Shopify Admin
// REST API. The merchant ID is the myshopify.com shop domain.
type ShopifyAdapter struct {
	config     ShopifyConfig
	app        goshopify.App
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ ports.PosAdapter = (*ShopifyAdapter)(nil)

// NewShopifyAdapter creates the adapter.
func NewShopifyAdapter(config ShopifyConfig, logger zerolog.Logger) *ShopifyAdapter {
	if config.Currency == "" {
		config.Currency = "USD"
	}
	if config.PageSize <= 0 || config.PageSize > 250 {
		config.PageSize = 250
	}
	return &ShopifyAdapter{
		config: config,
		app: goshopify.App{
			ApiKey:    config.APIKey,
			ApiSecret: config.APISecret,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (a *ShopifyAdapter) Provider() string { return providerShopify }

// AuthorizationURL builds the shop's OAuth authorization URL. Shopify
// expects scopes comma-separated without spaces.
func (a *ShopifyAdapter) AuthorizationURL(merchantID, state string) string {
	return fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		merchantID,
		a.config.APIKey,
		url.QueryEscape(strings.Join(a.config.Scopes, ",")),
		url.QueryEscape(a.config.RedirectURI),
		url.QueryEscape(state),
	)
}

// ExchangeCode exchanges the authorization code at the shop's token
// endpoint. The go-shopify helper does not carry redirect_uri, which
// Shopify requires to match the authorization request, so the call is made
// directly. Shopify offline tokens do not expire, so ExpiresAt stays zero.
func (a *ShopifyAdapter) ExchangeCode(ctx context.Context, merchantID, code string) (*domain.TokenSet, error) {
	values := url.Values{}
	values.Set("client_id", a.config.APIKey)
	values.Set("client_secret", a.config.APISecret)
	values.Set("code", code)
	values.Set("redirect_uri", a.config.RedirectURI)

	body, status, err := a.postForm(ctx, a.tokenURL(merchantID), values)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, domain.ErrInvalidGrant
		}
		return nil, &domain.ProviderError{StatusCode: status, Message: string(body)}
	}

	var tokenResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	tokens := &domain.TokenSet{
		AccessToken:  tokenResponse.AccessToken,
		RefreshToken: tokenResponse.RefreshToken,
	}
	if tokenResponse.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

// RefreshToken exchanges a refresh token for a fresh token set. Offline
// Shopify tokens never reach this path; expiring tokens go through the
// same endpoint with a refresh_token grant.
func (a *ShopifyAdapter) RefreshToken(ctx context.Context, merchantID, refreshToken string) (*domain.TokenSet, error) {
	values := url.Values{}
	values.Set("client_id", a.config.APIKey)
	values.Set("client_secret", a.config.APISecret)
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", refreshToken)

	body, status, err := a.postForm(ctx, a.tokenURL(merchantID), values)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, domain.ErrRefreshFailed
		}
		return nil, &domain.ProviderError{StatusCode: status, Message: string(body)}
	}

	var tokenResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	tokens := &domain.TokenSet{
		AccessToken:  tokenResponse.AccessToken,
		RefreshToken: tokenResponse.RefreshToken,
	}
	if tokenResponse.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(tokenResponse.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

// RevokeToken invalidates the token by deleting the app's API permissions
// on the shop.
func (a *ShopifyAdapter) RevokeToken(ctx context.Context, merchantID, accessToken string) error {
	revokeURL := fmt.Sprintf("https://%s/admin/api_permissions/current.json", merchantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, revokeURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &domain.ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return &domain.ProviderError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return nil
}

// FetchCatalogPage reads one page of products. The cursor is the since_id
// watermark; an empty cursor starts from the beginning.
func (a *ShopifyAdapter) FetchCatalogPage(ctx context.Context, integration *domain.Integration, accessToken, cursor string) (*ports.CatalogPage, error) {
	client, err := a.createClient(integration.MerchantID, accessToken)
	if err != nil {
		return nil, err
	}

	options := goshopify.ListOptions{Limit: a.config.PageSize}
	if cursor != "" {
		sinceID, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog cursor %q: %w", cursor, err)
		}
		options.SinceId = &sinceID
	}

	products, err := client.Product.List(ctx, options)
	if err != nil {
		return nil, classifyShopifyError(err)
	}

	page := &ports.CatalogPage{Items: make([]domain.CatalogItem, 0, len(products))}
	var lastID uint64
	for i := range products {
		page.Items = append(page.Items, a.toCatalogItem(&products[i]))
		if products[i].Id > lastID {
			lastID = products[i].Id
		}
	}
	if len(products) == a.config.PageSize {
		page.NextCursor = strconv.FormatUint(lastID, 10)
	}
	return page, nil
}

// UpsertCatalogItem creates or updates one product and returns its ID.
func (a *ShopifyAdapter) UpsertCatalogItem(ctx context.Context, integration *domain.Integration, accessToken string, item domain.CatalogItem) (string, error) {
	client, err := a.createClient(integration.MerchantID, accessToken)
	if err != nil {
		return "", err
	}

	product := a.toProduct(item)
	if item.ExternalID == "" {
		created, err := client.Product.Create(ctx, product)
		if err != nil {
			return "", classifyShopifyError(err)
		}
		return strconv.FormatUint(created.Id, 10), nil
	}

	productID, err := strconv.ParseUint(item.ExternalID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid external product ID %q: %w", item.ExternalID, err)
	}
	product.Id = productID
	updated, err := client.Product.Update(ctx, product)
	if err != nil {
		return "", classifyShopifyError(err)
	}
	return strconv.FormatUint(updated.Id, 10), nil
}

// FetchInventoryLevels reads quantity-on-hand per product ID. Quantities
// live on the product's primary variant.
func (a *ShopifyAdapter) FetchInventoryLevels(ctx context.Context, integration *domain.Integration, accessToken string, externalIDs []string) (map[string]int, error) {
	client, err := a.createClient(integration.MerchantID, accessToken)
	if err != nil {
		return nil, err
	}

	levels := make(map[string]int, len(externalIDs))
	for _, externalID := range externalIDs {
		productID, err := strconv.ParseUint(externalID, 10, 64)
		if err != nil {
			continue
		}
		product, err := client.Product.Get(ctx, productID, nil)
		if err != nil {
			classified := classifyShopifyError(err)
			var pe *domain.ProviderError
			if errors.As(classified, &pe) && pe.StatusCode == http.StatusNotFound {
				continue
			}
			return nil, classified
		}
		if len(product.Variants) > 0 {
			levels[externalID] = product.Variants[0].InventoryQuantity
		}
	}
	return levels, nil
}

// SetInventoryLevel writes quantity-on-hand for one product's primary
// variant at the configured location.
func (a *ShopifyAdapter) SetInventoryLevel(ctx context.Context, integration *domain.Integration, accessToken string, externalID string, quantity int) error {
	client, err := a.createClient(integration.MerchantID, accessToken)
	if err != nil {
		return err
	}

	productID, err := strconv.ParseUint(externalID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid external product ID %q: %w", externalID, err)
	}
	product, err := client.Product.Get(ctx, productID, nil)
	if err != nil {
		return classifyShopifyError(err)
	}
	if len(product.Variants) == 0 {
		return &domain.ProviderError{StatusCode: http.StatusUnprocessableEntity, Message: "product has no variants"}
	}

	level := goshopify.InventoryLevel{
		InventoryItemId: product.Variants[0].InventoryItemId,
		LocationId:      a.config.LocationID,
		Available:       quantity,
	}
	if _, err := client.InventoryLevel.Set(ctx, level); err != nil {
		return classifyShopifyError(err)
	}
	return nil
}

func (a *ShopifyAdapter) createClient(shopDomain, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(a.app, shopDomain, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create shopify client: %w", err)
	}
	return client, nil
}

func (a *ShopifyAdapter) tokenURL(shopDomain string) string {
	return fmt.Sprintf("https://%s/admin/oauth/access_token", shopDomain)
}

func (a *ShopifyAdapter) postForm(ctx context.Context, endpoint string, values url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.ProviderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, resp.StatusCode, rateLimitedFromHeader(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read token response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// toCatalogItem converts a Shopify product to the normalized record. The
// primary variant carries SKU, price, and quantity.
func (a *ShopifyAdapter) toCatalogItem(product *goshopify.Product) domain.CatalogItem {
	item := domain.CatalogItem{
		ExternalID:  strconv.FormatUint(product.Id, 10),
		Name:        product.Title,
		Description: product.BodyHTML,
		Currency:    a.config.Currency,
	}
	if product.UpdatedAt != nil {
		item.UpdatedAt = *product.UpdatedAt
	}
	if len(product.Variants) > 0 {
		variant := product.Variants[0]
		item.SKU = variant.Sku
		item.QuantityOnHand = variant.InventoryQuantity
		if variant.Price != nil {
			item.Price = *variant.Price
		}
	}
	for _, image := range product.Images {
		item.ImageURLs = append(item.ImageURLs, image.Src)
	}
	return item
}

func (a *ShopifyAdapter) toProduct(item domain.CatalogItem) goshopify.Product {
	price := item.Price
	product := goshopify.Product{
		Title:    item.Name,
		BodyHTML: item.Description,
		Variants: []goshopify.Variant{{
			Sku:               item.SKU,
			Price:             &price,
			InventoryQuantity: item.QuantityOnHand,
		}},
	}
	for _, src := range item.ImageURLs {
		product.Images = append(product.Images, goshopify.Image{Src: src})
	}
	return product
}

// classifyShopifyError maps go-shopify failures into the engine taxonomy
// so the batch processor backs off uniformly.
func classifyShopifyError(err error) error {
	if err == nil {
		return nil
	}
	var rateLimit goshopify.RateLimitError
	if errors.As(err, &rateLimit) {
		return &domain.RateLimitedError{RetryAfter: time.Duration(rateLimit.RetryAfter) * time.Second}
	}
	var response goshopify.ResponseError
	if errors.As(err, &response) {
		if response.Status == http.StatusTooManyRequests {
			return &domain.RateLimitedError{}
		}
		return &domain.ProviderError{StatusCode: response.Status, Message: response.Error()}
	}
	return &domain.ProviderError{Message: err.Error()}
}

func rateLimitedFromHeader(resp *http.Response) error {
	rateLimited := &domain.RateLimitedError{}
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.ParseFloat(header, 64); err == nil {
			rateLimited.RetryAfter = time.Duration(seconds * float64(time.Second))
		}
	}
	return rateLimited
}
