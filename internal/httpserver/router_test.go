package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/memory"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/identity"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	usersvc "storefront/internal/service/user"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
	users  *usersvc.Service
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	users := usersvc.New(store.Users(), "test-secret", time.Hour)
	router, err := buildRouter(nil, Deps{
		Identity: identity.New(users, time.Hour),
		Carts:    cartsvc.New(store.Carts(), store.Products(), nil),
		Orders:   ordersvc.New(store.Orders(), store.Carts(), store.Products(), ordersvc.Options{}),
		Products: productsvc.New(store.Products()),
		Users:    users,
		Store:    store,
		Options:  opts,
	})
	require.NoError(t, err)
	return &testEnv{router: router, store: store, users: users}
}

func (e *testEnv) product(t *testing.T, name, price string, stock int) domain.Product {
	t.Helper()
	p, err := e.store.Products().Create(context.Background(), domain.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: "fruit",
		Stock:    stock,
	})
	require.NoError(t, err)
	return *p
}

// token registers a user and returns a bearer token for it.
func (e *testEnv) token(t *testing.T, email string, admin bool) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.users.Register(ctx, usersvc.RegisterInput{
		Name:     "Test User",
		Email:    email,
		Password: "Secret123",
		IsAdmin:  admin,
	})
	require.NoError(t, err)
	session, err := e.users.Login(ctx, email, "Secret123")
	require.NoError(t, err)
	return session.Token
}

type request struct {
	method  string
	path    string
	body    string
	token   string
	cookies []*http.Cookie
	headers map[string]string
}

func (e *testEnv) do(r request) *httptest.ResponseRecorder {
	var req *http.Request
	if r.body != "" {
		req = httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(r.method, r.path, nil)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["message"]
}

func guestCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "guestCartId" {
			return c
		}
	}
	t.Fatalf("no guest cookie in response")
	return nil
}

func TestBuildRouter_RequiresServices(t *testing.T) {
	_, err := buildRouter(nil, Deps{})
	require.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(request{method: http.MethodGet, path: "/readyz"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestReady_StoreUnreachable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/readyz", readyHandler(failingPinger{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCart_GuestCookieIssuedAndReused(t *testing.T) {
	env := newTestEnv(t, Options{CookieSecure: true})
	apple := env.product(t, "Apple", "2.50", 10)

	rec := env.do(request{
		method: http.MethodPost,
		path:   "/cart/add",
		body:   `{"productId":"` + apple.ID + `","quantity":2}`,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := guestCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	rec = env.do(request{
		method:  http.MethodPost,
		path:    "/cart/add",
		body:    `{"productId":"` + apple.ID + `","quantity":3}`,
		cookies: []*http.Cookie{{Name: cookie.Name, Value: cookie.Value}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies(), "known guest must not be re-issued a cookie")

	view := decode[domain.CartView](t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("12.5").Equal(view.Subtotal))
}

func TestCart_Flow(t *testing.T) {
	env := newTestEnv(t, Options{})
	apple := env.product(t, "Apple", "2.50", 10)
	pear := env.product(t, "Pear", "1.00", 10)
	token := env.token(t, "shopper@example.com", false)

	for _, p := range []domain.Product{apple, pear} {
		rec := env.do(request{method: http.MethodPost, path: "/cart/add", token: token,
			body: `{"productId":"` + p.ID + `","quantity":1}`})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, rec.Result().Cookies(), "authenticated callers get no guest cookie")
	}

	rec := env.do(request{method: http.MethodPut, path: "/cart/update", token: token,
		body: `{"productId":"` + apple.ID + `","quantity":4}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(request{method: http.MethodDelete, path: "/cart/remove?productId=" + pear.ID, token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(request{method: http.MethodGet, path: "/cart", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[domain.CartView](t, rec)
	require.Len(t, view.Items, 1)
	assert.Equal(t, apple.ID, view.Items[0].ProductID)
	assert.Equal(t, 4, view.Items[0].Quantity)

	rec = env.do(request{method: http.MethodDelete, path: "/cart/remove", token: token,
		body: `{"productId":"` + apple.ID + `"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[domain.CartView](t, rec).Items)

	rec = env.do(request{method: http.MethodDelete, path: "/cart/clear", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCart_Errors(t *testing.T) {
	env := newTestEnv(t, Options{})
	apple := env.product(t, "Apple", "2.50", 3)
	token := env.token(t, "shopper@example.com", false)

	tests := []struct {
		name string
		req  request
		code int
	}{
		{"missing quantity", request{method: http.MethodPost, path: "/cart/add", token: token,
			body: `{"productId":"` + apple.ID + `"}`}, http.StatusBadRequest},
		{"negative quantity", request{method: http.MethodPost, path: "/cart/add", token: token,
			body: `{"productId":"` + apple.ID + `","quantity":-1}`}, http.StatusBadRequest},
		{"quantity too large", request{method: http.MethodPost, path: "/cart/add", token: token,
			body: `{"productId":"` + apple.ID + `","quantity":9223372036854775807}`}, http.StatusBadRequest},
		{"unknown field", request{method: http.MethodPost, path: "/cart/add", token: token,
			body: `{"productId":"` + apple.ID + `","quantity":1,"price":"0.01"}`}, http.StatusBadRequest},
		{"unknown product", request{method: http.MethodPost, path: "/cart/add", token: token,
			body: `{"productId":"nope","quantity":1}`}, http.StatusNotFound},
		{"insufficient stock", request{method: http.MethodPost, path: "/cart/add", token: token,
			body: `{"productId":"` + apple.ID + `","quantity":4}`}, http.StatusConflict},
		{"no cart yet", request{method: http.MethodGet, path: "/cart", token: token}, http.StatusNotFound},
		{"remove without product", request{method: http.MethodDelete, path: "/cart/remove", token: token}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, messageOf(t, rec))
		})
	}
}

func TestIdentity_InvalidTokenNeverFallsBackToGuest(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(request{method: http.MethodGet, path: "/cart", token: "not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid or expired token", messageOf(t, rec))
	assert.Empty(t, rec.Result().Cookies())

	rec = env.do(request{method: http.MethodGet, path: "/cart",
		headers: map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrders_CreateFromGuestCart(t *testing.T) {
	env := newTestEnv(t, Options{})
	apple := env.product(t, "Apple", "2.50", 10)
	pear := env.product(t, "Pear", "5.00", 10)

	rec := env.do(request{method: http.MethodPost, path: "/cart/add",
		body: `{"productId":"` + apple.ID + `","quantity":2}`})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := guestCookie(t, rec)
	jar := []*http.Cookie{{Name: cookie.Name, Value: cookie.Value}}

	rec = env.do(request{method: http.MethodPost, path: "/cart/add", cookies: jar,
		body: `{"productId":"` + pear.ID + `","quantity":4}`})
	require.Equal(t, http.StatusOK, rec.Code)

	address := `{"shippingAddress":{"street":"1 Main St","city":"Springfield","postalCode":"12345","country":"US"}}`
	create := request{method: http.MethodPost, path: "/orders", cookies: jar, body: address,
		headers: map[string]string{"Idempotency-Key": "checkout-1"}}
	rec = env.do(create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.OrderView](t, rec)
	assert.Equal(t, domain.OrderStatusPending, created.Status)
	assert.True(t, decimal.RequireFromString("25").Equal(created.Total))
	require.Len(t, created.Items, 2)

	// A retried submission returns the same order instead of failing on the
	// now empty cart.
	rec = env.do(create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, created.ID, decode[domain.OrderView](t, rec).ID)

	rec = env.do(request{method: http.MethodGet, path: "/cart", cookies: jar})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[domain.CartView](t, rec).Items)

	rec = env.do(request{method: http.MethodPost, path: "/orders", cookies: jar})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.ErrEmptyCart.Error(), messageOf(t, rec))
}

func TestOrders_ReadAndStatus(t *testing.T) {
	env := newTestEnv(t, Options{})
	apple := env.product(t, "Apple", "2.50", 10)
	owner := env.token(t, "owner@example.com", false)
	other := env.token(t, "other@example.com", false)
	admin := env.token(t, "admin@example.com", true)

	rec := env.do(request{method: http.MethodPost, path: "/cart/add", token: owner,
		body: `{"productId":"` + apple.ID + `","quantity":1}`})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(request{method: http.MethodPost, path: "/orders", token: owner})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[domain.OrderView](t, rec).ID

	rec = env.do(request{method: http.MethodGet, path: "/orders", token: owner})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.OrderView](t, rec), 1)

	rec = env.do(request{method: http.MethodGet, path: "/orders"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "guests cannot list orders")

	rec = env.do(request{method: http.MethodGet, path: "/orders/" + id, token: other})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(request{method: http.MethodGet, path: "/orders/" + id, token: admin})
	assert.Equal(t, http.StatusOK, rec.Code)

	status := request{method: http.MethodPut, path: "/orders/" + id + "/status", body: `{"status":"Shipped"}`}

	status.token = owner
	rec = env.do(status)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	status.token = admin
	rec = env.do(status)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.OrderStatusShipped, decode[domain.OrderView](t, rec).Status)

	status.body = `{"status":"Lost"}`
	rec = env.do(status)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(request{method: http.MethodGet, path: "/orders/" + id, token: owner})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusShipped, decode[domain.OrderView](t, rec).Status)

	rec = env.do(request{method: http.MethodPut, path: "/orders/missing/status", token: admin, body: `{"status":"Shipped"}`})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProducts_AdminCatalog(t *testing.T) {
	env := newTestEnv(t, Options{})
	admin := env.token(t, "admin@example.com", true)
	shopper := env.token(t, "shopper@example.com", false)
	body := `{"name":"Mango","price":"3.20","category":"fruit","stock":5,"images":["mango.png"]}`

	rec := env.do(request{method: http.MethodPost, path: "/products", body: body})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "admin routes never mint guest identities")

	rec = env.do(request{method: http.MethodPost, path: "/products", token: shopper, body: body})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(request{method: http.MethodPost, path: "/products", token: admin, body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	mango := decode[domain.Product](t, rec)
	assert.True(t, decimal.RequireFromString("3.2").Equal(mango.Price))

	rec = env.do(request{method: http.MethodPut, path: "/products/" + mango.ID, token: admin, body: `{"stock":7}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Product](t, rec)
	assert.Equal(t, 7, updated.Stock)
	assert.Equal(t, "Mango", updated.Name)

	rec = env.do(request{method: http.MethodGet, path: "/products?category=fruit"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Product](t, rec), 1)

	rec = env.do(request{method: http.MethodGet, path: "/categories"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"fruit"}, decode[[]string](t, rec))

	rec = env.do(request{method: http.MethodDelete, path: "/products/" + mango.ID, token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "product deleted", messageOf(t, rec))

	rec = env.do(request{method: http.MethodGet, path: "/products/" + mango.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_RegisterLoginMe(t *testing.T) {
	env := newTestEnv(t, Options{AuthRateRPS: 100, AuthRateBurst: 100})

	rec := env.do(request{method: http.MethodPost, path: "/users/register",
		body: `{"name":"Ann","email":"Ann@Example.com","password":"Secret123"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "Secret123")

	rec = env.do(request{method: http.MethodPost, path: "/users/register",
		body: `{"name":"Ann","email":"ann@example.com","password":"Secret123"}`})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(request{method: http.MethodPost, path: "/users/register",
		body: `{"name":"Ann","email":"ann2@example.com","password":"Secret123","isAdmin":true}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "admin flag cannot be self-assigned")

	rec = env.do(request{method: http.MethodPost, path: "/users/login",
		body: `{"email":"ann@example.com","password":"wrong"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.ErrInvalidCredentials.Error(), messageOf(t, rec))

	rec = env.do(request{method: http.MethodPost, path: "/users/login",
		body: `{"email":"ann@example.com","password":"Secret123"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode[sessionResponse](t, rec)
	require.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	rec = env.do(request{method: http.MethodGet, path: "/users/me", token: session.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[domain.User](t, rec)
	assert.Equal(t, "ann@example.com", me.Email)
	assert.False(t, me.IsAdmin)

	rec = env.do(request{method: http.MethodGet, path: "/users/me"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsers_LoginRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{AuthRateRPS: 0.001, AuthRateBurst: 2})
	login := request{method: http.MethodPost, path: "/users/login",
		body: `{"email":"nobody@example.com","password":"Secret123"}`}

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, env.do(login).Code)
	}
	rec := env.do(login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", messageOf(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(request{method: http.MethodGet, path: "/healthz"})

	rec := env.do(request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_http_requests_total{handler="/healthz",method="GET",status="200"} 1`)
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	env := newTestEnv(t, Options{CORSAllowOrigins: []string{"http://localhost:3000"}})

	rec := env.do(request{method: http.MethodOptions, path: "/cart", headers: map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": http.MethodGet,
	}})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
