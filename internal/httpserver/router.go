package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service/identity"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	usersvc "storefront/internal/service/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, bearer, guestCookie string) (identity.Resolution, error)
}

type CartService interface {
	AddItem(ctx context.Context, owner domain.OwnerKey, productID string, quantity int) (*domain.CartView, error)
	Get(ctx context.Context, owner domain.OwnerKey) (*domain.CartView, error)
	UpdateItem(ctx context.Context, owner domain.OwnerKey, productID string, quantity int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, owner domain.OwnerKey, productID string) (*domain.CartView, error)
	Clear(ctx context.Context, owner domain.OwnerKey) (*domain.CartView, error)
}

type OrderService interface {
	Create(ctx context.Context, owner domain.OwnerKey, in ordersvc.CreateInput) (*domain.OrderView, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.OrderView, error)
	Get(ctx context.Context, id string) (*domain.OrderView, error)
	GetForOwner(ctx context.Context, owner domain.OwnerKey, id string) (*domain.OrderView, error)
	ListForOwner(ctx context.Context, owner domain.OwnerKey) ([]domain.OrderView, error)
}

type ProductService interface {
	List(ctx context.Context, category string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, in productsvc.Input) (*domain.Product, error)
	Update(ctx context.Context, id string, in productsvc.Input) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type UserService interface {
	Register(ctx context.Context, in usersvc.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*usersvc.Session, error)
	Me(ctx context.Context, id string) (*domain.User, error)
}

// Options tunes cookie, CORS and rate limit behaviour.
type Options struct {
	GuestCookieName  string
	CookieSecure     bool
	CORSAllowOrigins []string
	AuthRateRPS      float64
	AuthRateBurst    int
}

type Deps struct {
	Identity IdentityResolver
	Carts    CartService
	Orders   OrderService
	Products ProductService
	Users    UserService
	// Store backs the readiness probe.
	Store   Pinger
	Options Options
}

type handlers struct {
	logger   *log.Logger
	carts    CartService
	orders   OrderService
	products ProductService
	users    UserService
}

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, deps Deps) (*gin.Engine, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if deps.Identity == nil || deps.Carts == nil || deps.Orders == nil || deps.Products == nil || deps.Users == nil {
		return nil, errors.New("httpserver: identity, cart, order, product and user services are required")
	}
	opts := deps.Options
	if opts.GuestCookieName == "" {
		opts.GuestCookieName = "guestCartId"
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	metrics := newMetrics()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), metrics.middleware())
	if len(opts.CORSAllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSAllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := &handlers{
		logger:   logger,
		carts:    deps.Carts,
		orders:   deps.Orders,
		products: deps.Products,
		users:    deps.Users,
	}
	ident := identityMiddleware(deps.Identity, opts, logger)
	auth := authMiddleware(deps.Identity, logger)
	authLimit := newIPRateLimiter(opts.AuthRateRPS, opts.AuthRateBurst, 10*time.Minute).middleware()

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Store))
	router.GET("/metrics", metrics.handler())

	cart := router.Group("/cart", ident)
	cart.POST("/add", h.addCartItem)
	cart.GET("", h.getCart)
	cart.PUT("/update", h.updateCartItem)
	cart.DELETE("/remove", h.removeCartItem)
	cart.DELETE("/clear", h.clearCart)

	orders := router.Group("/orders")
	orders.POST("", ident, h.createOrder)
	orders.GET("", auth, h.listOrders)
	orders.GET("/:id", auth, h.getOrder)
	orders.PUT("/:id/status", auth, requireAdmin, h.updateOrderStatus)

	router.GET("/categories", h.listCategories)
	products := router.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/:id", h.getProduct)
	products.POST("", auth, requireAdmin, h.createProduct)
	products.PUT("/:id", auth, requireAdmin, h.updateProduct)
	products.DELETE("/:id", auth, requireAdmin, h.deleteProduct)

	users := router.Group("/users")
	users.POST("/register", authLimit, h.register)
	users.POST("/login", authLimit, h.login)
	users.GET("/me", auth, h.me)

	return router, nil
}
