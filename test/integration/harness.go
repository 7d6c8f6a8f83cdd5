// Package integration provides a reusable test harness for end-to-end
// integration testing of the tripflow API server. It starts a full HTTP
// server with an in-memory trip store, a fake provider website for link
// probes, and a test JWT issuer.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/tripflow/internal/config"
	"github.com/pitabwire/tripflow/internal/linkhealth"
	"github.com/pitabwire/tripflow/internal/observability"
	"github.com/pitabwire/tripflow/internal/openapi"
	"github.com/pitabwire/tripflow/internal/store"
	"github.com/pitabwire/tripflow/internal/transport"
	"github.com/pitabwire/tripflow/internal/trip"
	"github.com/pitabwire/tripflow/internal/workflow"
	"github.com/pitabwire/tripflow/model"
)

// TestHarness encapsulates a fully wired API instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Store            *store.MemoryTripStore
	Engine           *workflow.Engine
	Service          *trip.Service
	IdempotencyStore trip.IdempotencyStore
	Metrics          *observability.Metrics
	Redis            *miniredis.Miniredis
	Links            *LinkSite

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	redisIdempotency bool
	handlerTimeout   time.Duration
	maxBodyBytes     int64
}

// WithRedisIdempotency backs the idempotency store with miniredis instead
// of memory.
func WithRedisIdempotency() HarnessOption {
	return func(c *harnessConfig) {
		c.redisIdempotency = true
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithMaxBodyBytes sets the request body limit.
func WithMaxBodyBytes(n int64) HarnessOption {
	return func(c *harnessConfig) {
		c.maxBodyBytes = n
	}
}

// NewTestHarness creates and starts a full API test instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		maxBodyBytes:   1 << 20,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{t: t}

	// Step 1: Start the fake provider website.
	h.Links = newLinkSite(t)

	// Step 2: Load the API document.
	api, err := openapi.Load()
	if err != nil {
		t.Fatalf("load API document: %v", err)
	}

	// Step 3: Build stores. Metrics use a private registry so harnesses
	// can coexist in one test binary.
	h.Metrics = observability.InitMetrics(prometheus.NewRegistry())
	h.Store = store.NewMemoryTripStore()
	var idemHealth observability.HealthChecker
	if hc.redisIdempotency {
		h.Redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: h.Redis.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		redisIdem := trip.NewRedisIdempotencyStore(client)
		h.IdempotencyStore, idemHealth = redisIdem, redisIdem
	} else {
		memIdem := trip.NewMemoryIdempotencyStore()
		h.IdempotencyStore, idemHealth = memIdem, memIdem
	}

	// Step 4: Build engine and service.
	prober := linkhealth.NewProber(linkhealth.Config{Timeout: 2 * time.Second},
		linkhealth.WithRecorder(h.Metrics))
	h.Engine = workflow.NewEngine(
		workflow.WithProber(prober),
		workflow.WithMarkers(workflow.Markers{Model: "planner-test", Profile: "integration"}),
	)
	h.Service = trip.NewService(
		store.Instrument(h.Store, config.DriverMemory, h.Metrics),
		h.Engine,
		trip.WithIdempotency(h.IdempotencyStore, time.Hour),
		trip.WithRecorder(h.Metrics),
	)

	// Step 5: Create JWT issuer.
	h.issuer = newTokenIssuer(t)

	// Step 6: Build config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.MaxBodyBytes = hc.maxBodyBytes
	h.cfg.Server.CORS = config.CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id", "X-Idempotency-Key"},
		MaxAge:         86400,
	}
	h.cfg.Identity = config.IdentityConfig{
		Issuer:       h.issuer.Issuer(),
		Audience:     h.issuer.Audience(),
		JWKSURL:      h.issuer.JWKSURL(),
		JWKSCacheTTL: time.Hour,
		Algorithms:   []string{"RS256"},
	}

	// Step 7: Build router with full middleware chain.
	jwks := transport.NewJWKSClient(h.issuer.JWKSURL(), time.Hour, nil)
	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Service:      h.Service,
		API:          api,
		Metrics:      h.Metrics,
		Authenticate: transport.JWTAuthenticator(h.cfg.Identity, jwks),
		Readiness: observability.ReadinessChecks{
			TripStore:        h.Store,
			APILoaded:        func() bool { return api.Len() > 0 },
			IdempotencyStore: idemHealth,
		},
	})

	// Step 8: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.Do(http.MethodGet, path, nil, token, nil)
}

// PUT performs an authenticated PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.Do(http.MethodPut, path, body, token, nil)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.Do(http.MethodPost, path, body, token, nil)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.Do(http.MethodDelete, path, nil, token, nil)
}

// Do performs a request. A string body is sent verbatim; anything else is
// marshalled to JSON.
func (h *TestHarness) Do(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code and
// closes the body.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != expected {
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertData checks the response status and decodes the {"data": ...}
// envelope into target.
func (h *TestHarness) AssertData(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	h.ParseJSON(resp, &envelope)
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		t.Fatalf("unmarshal data: %v\ndata: %s", err, string(envelope.Data))
	}
}

// --- Default test claims ---

// PlannerClaims returns TestClaims for the trip planner.
func PlannerClaims() TestClaims {
	return TestClaims{
		SubjectID: "planner-1",
		Email:     "planner@example.com",
		Roles:     []string{model.RolePlanner},
	}
}

// MemberClaims returns TestClaims for a group member.
func MemberClaims() TestClaims {
	return TestClaims{
		SubjectID: "member-1",
		Email:     "member@example.com",
		Roles:     []string{model.RoleMember},
	}
}

// --- Fixtures ---

// SpecFixture returns a complete trip spec with the resort locked.
func SpecFixture() model.TripSpec {
	return model.TripSpec{
		Dates:    model.DateSpec{Start: "2027-02-12", End: "2027-02-15"},
		Group:    model.GroupSpec{Size: 4, SkillLevels: []string{"intermediate"}},
		Budget:   model.BudgetSpec{PerPersonTarget: 1200, Currency: "USD"},
		Travel:   model.TravelSpec{Mode: model.TravelModeFly, Origin: "SFO"},
		Location: model.LocationSpec{Region: "Utah"},
		Locks:    model.SpecLocks{ResortName: "Alta", DatesLocked: true},
	}
}

// Link paths served by the harness's LinkSite after ServeFixtureLinks.
const (
	PathAltaConditions = "/alta/conditions"
	PathAltaLodge      = "/stay/alta-lodge"
	PathCliffLodge     = "/stay/cliff"
)

// ServeFixtureLinks makes the Alta links answer 200 and leaves the Cliff
// Lodge link broken.
func (h *TestHarness) ServeFixtureLinks() {
	h.Links.Serve(PathAltaConditions, http.StatusOK).Serve(PathAltaLodge, http.StatusOK)
}

// DecisionFixture returns a two-itinerary decision package whose links
// point at the harness's LinkSite.
func (h *TestHarness) DecisionFixture() model.DecisionPackage {
	fetched := time.Now().Add(-2 * time.Hour).UTC()
	return model.DecisionPackage{
		Itineraries: []model.Itinerary{
			{
				ID:         "it-alta",
				ResortName: "Alta",
				StartDate:  "2027-02-12",
				EndDate:    "2027-02-15",
				Budget: model.BudgetBreakdown{
					TotalPerPerson: 900,
					Assumptions:    []string{"Lift tickets at window price", "Shared condo for four"},
				},
				Lodging: model.LodgingResults{
					Options:   []model.LodgingOption{{Name: "Alta Lodge", TotalPrice: 2400, BookingURL: h.Links.URL(PathAltaLodge)}},
					FetchedAt: &fetched,
				},
				ResearchLinks: []string{h.Links.URL(PathAltaConditions)},
			},
			{
				ID:         "it-snowbird",
				ResortName: "Snowbird",
				StartDate:  "2027-02-12",
				EndDate:    "2027-02-15",
				Budget:     model.BudgetBreakdown{TotalPerPerson: 1050},
				Lodging: model.LodgingResults{
					Options:   []model.LodgingOption{{Name: "Cliff Lodge", TotalPrice: 2800, BookingURL: h.Links.URL(PathCliffLodge)}},
					FetchedAt: &fetched,
				},
			},
		},
		DecisionMatrix: model.DecisionMatrix{Rows: []model.MatrixRow{
			{ItineraryID: "it-alta", ResortName: "Alta", Rank: 1, Score: 87.5},
			{ItineraryID: "it-snowbird", ResortName: "Snowbird", Rank: 2, Score: 80},
		}},
		BudgetSummary: model.BudgetSummary{MinPerPerson: 900, MaxPerPerson: 1050, MedianPerPerson: 975, TargetPerPerson: 1200, Currency: "USD"},
		OpsBoard: model.OpsBoard{Tasks: []model.OpsTask{
			{ID: "book-lodging", Title: "Book lodging"},
			{ID: "buy-lift-tickets", Title: "Buy lift tickets"},
		}},
	}
}

// PutTripBody builds the PUT /v1/trips/{tripId} body.
func PutTripBody(spec model.TripSpec, decision *model.DecisionPackage) map[string]any {
	return map[string]any{"spec": spec, "decision": decision}
}
