package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/migrate"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/identity"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	usersvc "storefront/internal/service/user"
	"storefront/internal/store"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	generated, err := cfg.EnsureJWTSecret()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if generated {
		logger.Printf("warning: JWT_SECRET unset, using a random per-process secret; tokens will not survive a restart")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close()

	if st.Pool != nil {
		if err := migrate.Apply(ctx, st.Pool); err != nil {
			logger.Fatalf("apply migrations: %v", err)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if brokers := events.ParseBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(brokers, cfg.KafkaOrderTopic)
		logger.Printf("publishing order events to %s on %v", cfg.KafkaOrderTopic, brokers)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Printf("close event publisher: %v", err)
		}
	}()

	userService := usersvc.New(st.Users, cfg.JWTSecret, cfg.JWTTTL)
	identityService := identity.New(userService, cfg.GuestCookieTTL)
	productService := productsvc.New(st.Products)
	cartService := cartsvc.New(st.Carts, st.Products, logger)
	orderService := ordersvc.New(st.Orders, st.Carts, st.Products, ordersvc.Options{
		MonotonicStatuses: cfg.MonotonicStatuses,
		Publisher:         publisher,
		Logger:            logger,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Identity: identityService,
		Carts:    cartService,
		Orders:   orderService,
		Products: productService,
		Users:    userService,
		Store:    st.Pinger,
		Options: httpserver.Options{
			GuestCookieName:  cfg.GuestCookieName,
			CookieSecure:     cfg.CookieSecure,
			CORSAllowOrigins: cfg.CORSAllowOrigins,
			AuthRateRPS:      cfg.AuthRateLimitRPS,
			AuthRateBurst:    cfg.AuthRateBurst,
		},
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s (store=%s)", cfg.HTTPAddr, st.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
