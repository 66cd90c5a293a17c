package main

import (
	"context"
	"flag"
	"log"
	"os"

	"storefront/internal/config"
	"storefront/internal/migrate"
	"storefront/internal/seed"
	usersvc "storefront/internal/service/user"
	"storefront/internal/store"
)

func main() {
	var admin seed.Admin
	flag.StringVar(&admin.Email, "admin-email", os.Getenv("SEED_ADMIN_EMAIL"), "Email of the admin account to create (empty skips it)")
	flag.StringVar(&admin.Password, "admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "Password of the admin account")
	flag.StringVar(&admin.Name, "admin-name", "Store Admin", "Display name of the admin account")
	flag.Parse()

	cfg := config.Load()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

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

	users := usersvc.New(st.Users, cfg.JWTSecret, cfg.JWTTTL)
	if err := seed.Apply(ctx, st.Products, users, admin); err != nil {
		logger.Fatalf("seed apply: %v", err)
	}

	logger.Println("seed applied")
}
