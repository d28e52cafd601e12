package application

import (
	"context"
	"fmt"
	"sync"

	"poslink-core/internal/domain"
	"poslink-core/internal/ports"
)

// In-memory fakes shared by the application tests.

type nopLimiter struct{}

func (nopLimiter) Acquire(context.Context) error { return nil }

// fakeLimiterProvider records which integrations asked for a limiter.
type fakeLimiterProvider struct {
	mu  sync.Mutex
	ids []string
}

func (p *fakeLimiterProvider) LimiterFor(integrationID string) ports.RateLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, integrationID)
	return nopLimiter{}
}

type nopMetrics struct{}

func (nopMetrics) RunStarted()                     {}
func (nopMetrics) RunFinished(string, float64)     {}
func (nopMetrics) ItemsObserved(domain.SyncCounts) {}
func (nopMetrics) RateLimiterWait(float64)         {}

type collectingPublisher struct {
	mu     sync.Mutex
	events []*domain.SyncEvent
}

func (p *collectingPublisher) Publish(event *domain.SyncEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *collectingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

// fakeAdapter is a scriptable PosAdapter.
type fakeAdapter struct {
	mu sync.Mutex

	provider string
	items    []domain.CatalogItem
	levels   map[string]int

	exchangeTokens *domain.TokenSet
	exchangeErr    error
	refreshTokens  *domain.TokenSet
	refreshErr     error
	upsertErr      error

	refreshCalls    int
	revokeCalls     int
	fetchLevelCalls int
	upserted        []domain.CatalogItem
	setLevels       map[string]int
	nextUpsertID    int
}

func newFakeAdapter(items ...domain.CatalogItem) *fakeAdapter {
	return &fakeAdapter{
		provider:  "fakepos",
		items:     items,
		levels:    map[string]int{},
		setLevels: map[string]int{},
	}
}

func (a *fakeAdapter) Provider() string { return a.provider }

func (a *fakeAdapter) AuthorizationURL(merchantID, state string) string {
	return fmt.Sprintf("https://auth.fakepos.test/authorize?merchant=%s&state=%s", merchantID, state)
}

func (a *fakeAdapter) ExchangeCode(_ context.Context, _, _ string) (*domain.TokenSet, error) {
	if a.exchangeErr != nil {
		return nil, a.exchangeErr
	}
	if a.exchangeTokens != nil {
		return a.exchangeTokens, nil
	}
	return &domain.TokenSet{AccessToken: "access-token"}, nil
}

func (a *fakeAdapter) RefreshToken(_ context.Context, _, _ string) (*domain.TokenSet, error) {
	a.mu.Lock()
	a.refreshCalls++
	a.mu.Unlock()
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	if a.refreshTokens != nil {
		return a.refreshTokens, nil
	}
	return &domain.TokenSet{AccessToken: "refreshed-access"}, nil
}

func (a *fakeAdapter) RevokeToken(_ context.Context, _, _ string) error {
	a.mu.Lock()
	a.revokeCalls++
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) FetchCatalogPage(_ context.Context, _ *domain.Integration, _ string, cursor string) (*ports.CatalogPage, error) {
	if cursor != "" {
		return &ports.CatalogPage{}, nil
	}
	return &ports.CatalogPage{Items: a.items}, nil
}

func (a *fakeAdapter) UpsertCatalogItem(_ context.Context, _ *domain.Integration, _ string, item domain.CatalogItem) (string, error) {
	if a.upsertErr != nil {
		return "", a.upsertErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.upserted = append(a.upserted, item)
	if item.ExternalID != "" {
		return item.ExternalID, nil
	}
	a.nextUpsertID++
	return fmt.Sprintf("ext-%d", a.nextUpsertID), nil
}

func (a *fakeAdapter) FetchInventoryLevels(_ context.Context, _ *domain.Integration, _ string, externalIDs []string) (map[string]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchLevelCalls++
	levels := make(map[string]int)
	for _, id := range externalIDs {
		if qty, ok := a.levels[id]; ok {
			levels[id] = qty
		}
	}
	return levels, nil
}

func (a *fakeAdapter) SetInventoryLevel(_ context.Context, _ *domain.Integration, _ string, externalID string, quantity int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLevels[externalID] = quantity
	return nil
}

type fakeRegistry struct {
	adapters map[string]ports.PosAdapter
}

func newFakeRegistry(adapters ...ports.PosAdapter) *fakeRegistry {
	r := &fakeRegistry{adapters: map[string]ports.PosAdapter{}}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

func (r *fakeRegistry) Adapter(provider string) (ports.PosAdapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", provider)
	}
	return a, nil
}

// memMappings is an in-memory ProductMappingRepository.
type memMappings struct {
	mu       sync.Mutex
	byKey    map[string]*domain.ProductMapping
	nextID   int
	upserted int
}

func newMemMappings() *memMappings {
	return &memMappings{byKey: map[string]*domain.ProductMapping{}}
}

func (m *memMappings) key(integrationID, externalID string) string {
	return integrationID + "/" + externalID
}

func (m *memMappings) Upsert(_ context.Context, mapping *domain.ProductMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted++
	key := m.key(mapping.IntegrationID, mapping.ExternalID)
	if existing, ok := m.byKey[key]; ok {
		existing.PlatformID = mapping.PlatformID
		existing.LastSyncedAt = mapping.LastSyncedAt
		existing.LastKnownHash = mapping.LastKnownHash
		return nil
	}
	m.nextID++
	stored := *mapping
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("map-%d", m.nextID)
	}
	m.byKey[key] = &stored
	return nil
}

func (m *memMappings) GetByExternalID(_ context.Context, integrationID, externalID string) (*domain.ProductMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mapping, ok := m.byKey[m.key(integrationID, externalID)]; ok {
		copied := *mapping
		return &copied, nil
	}
	return nil, nil
}

func (m *memMappings) GetByPlatformID(_ context.Context, integrationID, platformID string) (*domain.ProductMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mapping := range m.byKey {
		if mapping.IntegrationID == integrationID && mapping.PlatformID == platformID {
			copied := *mapping
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memMappings) ListByIntegration(_ context.Context, integrationID string) ([]*domain.ProductMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mappings []*domain.ProductMapping
	for _, mapping := range m.byKey {
		if mapping.IntegrationID == integrationID {
			copied := *mapping
			mappings = append(mappings, &copied)
		}
	}
	return mappings, nil
}

// memCatalog is an in-memory PlatformCatalog.
type memCatalog struct {
	mu       sync.Mutex
	products map[string]domain.CatalogItem
	nextID   int
	created  int
	updated  int
}

func newMemCatalog(items ...domain.CatalogItem) *memCatalog {
	c := &memCatalog{products: map[string]domain.CatalogItem{}}
	for _, item := range items {
		c.products[item.PlatformID] = item
	}
	return c
}

func (c *memCatalog) GetProduct(_ context.Context, _, platformID string) (*domain.CatalogItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.products[platformID]; ok {
		copied := item
		return &copied, nil
	}
	return nil, nil
}

func (c *memCatalog) ListProducts(context.Context, string) ([]domain.CatalogItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]domain.CatalogItem, 0, len(c.products))
	for _, item := range c.products {
		items = append(items, item)
	}
	return items, nil
}

func (c *memCatalog) CreateProduct(_ context.Context, _ string, item domain.CatalogItem) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
	c.nextID++
	item.PlatformID = fmt.Sprintf("plat-%d", c.nextID)
	c.products[item.PlatformID] = item
	return item.PlatformID, nil
}

func (c *memCatalog) UpdateProduct(_ context.Context, _ string, item domain.CatalogItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[item.PlatformID]; !ok {
		return fmt.Errorf("product %s not found", item.PlatformID)
	}
	c.updated++
	c.products[item.PlatformID] = item
	return nil
}

func (c *memCatalog) SetQuantity(_ context.Context, _, platformID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.products[platformID]
	if !ok {
		return fmt.Errorf("product %s not found", platformID)
	}
	item.QuantityOnHand = quantity
	c.products[platformID] = item
	return nil
}

// memIntegrations is an in-memory IntegrationRepository.
type memIntegrations struct {
	mu           sync.Mutex
	byID         map[string]*domain.Integration
	tokenUpdates int
}

func newMemIntegrations(integrations ...*domain.Integration) *memIntegrations {
	m := &memIntegrations{byID: map[string]*domain.Integration{}}
	for _, integration := range integrations {
		copied := *integration
		m.byID[integration.ID] = &copied
	}
	return m
}

func (m *memIntegrations) Create(_ context.Context, integration *domain.Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.TenantID == integration.TenantID && existing.Provider == integration.Provider {
			existing.Active = false
		}
	}
	copied := *integration
	m.byID[integration.ID] = &copied
	return nil
}

func (m *memIntegrations) GetByID(_ context.Context, id string) (*domain.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if integration, ok := m.byID[id]; ok {
		copied := *integration
		return &copied, nil
	}
	return nil, nil
}

func (m *memIntegrations) GetActiveByTenantAndProvider(_ context.Context, tenantID, provider string) (*domain.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, integration := range m.byID {
		if integration.TenantID == tenantID && integration.Provider == provider && integration.Active {
			copied := *integration
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memIntegrations) UpdateTokens(_ context.Context, id string, tokens domain.TokenSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integration, ok := m.byID[id]
	if !ok {
		return domain.ErrIntegrationNotFound
	}
	m.tokenUpdates++
	integration.AccessToken = tokens.AccessToken
	integration.RefreshToken = tokens.RefreshToken
	integration.TokenExpiresAt = tokens.ExpiresAt
	return nil
}

func (m *memIntegrations) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	integration, ok := m.byID[id]
	if !ok {
		return domain.ErrIntegrationNotFound
	}
	integration.Active = false
	return nil
}

// memLogs is an in-memory SyncLogRepository enforcing the forward-only
// status machine.
type memLogs struct {
	mu   sync.Mutex
	byID map[string]*domain.SyncLog
}

func newMemLogs() *memLogs {
	return &memLogs{byID: map[string]*domain.SyncLog{}}
}

func (m *memLogs) Create(_ context.Context, log *domain.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *log
	m.byID[log.ID] = &copied
	return nil
}

func (m *memLogs) MarkRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.byID[id]
	if !ok || log.Status != domain.SyncStatusQueued {
		return domain.ErrSyncLogImmutable
	}
	log.Status = domain.SyncStatusRunning
	return nil
}

func (m *memLogs) AppendResults(_ context.Context, id string, counts domain.SyncCounts, items []domain.ItemResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.byID[id]
	if !ok || log.Status != domain.SyncStatusRunning {
		return domain.ErrSyncLogImmutable
	}
	log.Counts.Add(counts)
	log.Items = append(log.Items, items...)
	return nil
}

func (m *memLogs) Finalize(_ context.Context, id string, status domain.SyncStatus, errorSummary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.byID[id]
	if !ok || log.Status.Terminal() {
		return domain.ErrSyncLogImmutable
	}
	log.Status = status
	log.ErrorSummary = errorSummary
	return nil
}

func (m *memLogs) GetByID(_ context.Context, id string) (*domain.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if log, ok := m.byID[id]; ok {
		copied := *log
		return &copied, nil
	}
	return nil, nil
}

func (m *memLogs) ListByTenant(_ context.Context, tenantID string, _, _ int) ([]*domain.SyncLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var logs []*domain.SyncLog
	for _, log := range m.byID {
		if log.TenantID == tenantID {
			copied := *log
			logs = append(logs, &copied)
		}
	}
	return logs, int64(len(logs)), nil
}

// memStates is an in-memory OAuthStateStore.
type memStates struct {
	mu     sync.Mutex
	states map[string]*domain.AuthState
}

func newMemStates() *memStates {
	return &memStates{states: map[string]*domain.AuthState{}}
}

func (m *memStates) Save(_ context.Context, state *domain.AuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.State] = state
	return nil
}

func (m *memStates) Consume(_ context.Context, state string) (*domain.AuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.states[state]
	if !ok {
		return nil, domain.ErrAuthorizationExpired
	}
	delete(m.states, state)
	return stored, nil
}

// plainCrypto marks values encrypted with a prefix so tests can assert
// tokens were encrypted without real ciphertext.
type plainCrypto struct{}

func (plainCrypto) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (plainCrypto) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) < 4 || ciphertext[:4] != "enc:" {
		return "", fmt.Errorf("not an encrypted value: %q", ciphertext)
	}
	return ciphertext[4:], nil
}
