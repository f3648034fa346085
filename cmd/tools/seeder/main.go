package main

import (
	"context"
	"errors"
	"flag"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/app"
	"github.com/noah-isme/backend-kopi/internal/auth"
	"github.com/noah-isme/backend-kopi/internal/config"
	"github.com/noah-isme/backend-kopi/internal/coupon"
	"github.com/noah-isme/backend-kopi/internal/membership"
	"github.com/noah-isme/backend-kopi/internal/menu"
)

func main() {
	adminEmail := flag.String("admin-email", "admin@kopi.local", "email of the seeded admin account")
	adminPassword := flag.String("admin-password", "", "password of the seeded admin account; empty skips user seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	ctx := context.Background()
	deps, err := app.New(ctx, cfg, app.Options{Service: "kopi-seeder", Migrate: true, SkipTaskClient: true})
	if err != nil {
		panic(err)
	}
	defer deps.Close(ctx)
	logger := deps.Logger

	if *adminPassword != "" {
		authService, err := auth.NewService(auth.Config{
			Queries:        auth.NewStore(deps.DB),
			Secret:         cfg.JWTSecret,
			AccessTokenTTL: cfg.AccessTokenTTL,
			Issuer:         cfg.JWTIssuer,
			Audience:       cfg.JWTAudience,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise auth service")
		}
		seedUsers(ctx, logger, authService, *adminEmail, *adminPassword)
	}
	seedMenu(ctx, logger, &menu.Service{Q: menu.NewStore(deps.DB), Logger: logger})
	seedCoupons(ctx, logger, &coupon.Service{Q: coupon.NewStore(deps.DB), Logger: logger})
	seedCustomers(ctx, logger, &membership.Service{Q: membership.NewStore(deps.DB), Logger: logger})

	logger.Info().Msg("seeding completed")
}

func seedUsers(ctx context.Context, logger zerolog.Logger, svc *auth.Service, email, password string) {
	_, err := svc.CreateUser(ctx, "Kopi Admin", email, "", password, []string{auth.RoleAdmin})
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		logger.Info().Str("email", email).Msg("admin already present")
	case err != nil:
		logger.Error().Err(err).Str("email", email).Msg("seed admin")
	default:
		logger.Info().Str("email", email).Msg("admin created")
	}
}

func seedMenu(ctx context.Context, logger zerolog.Logger, svc *menu.Service) {
	items := []menu.Input{
		{Name: "Cà phê đen đá", Category: "coffee", Price: 29000},
		{Name: "Cà phê sữa đá", Category: "coffee", Price: 35000},
		{Name: "Bạc xỉu", Category: "coffee", Price: 39000},
		{Name: "Cold brew cam sả", Category: "coffee", Price: 49000},
		{Name: "Trà đào cam sả", Category: "tea", Price: 45000},
		{Name: "Trà sen vàng", Category: "tea", Price: 49000},
		{Name: "Bánh mì que", Category: "food", Price: 19000},
		{Name: "Croissant bơ", Category: "food", Price: 35000},
	}

	existing, err := svc.List(ctx, "")
	if err != nil {
		logger.Error().Err(err).Msg("list menu")
		return
	}
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[strings.ToLower(p.Name)] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[strings.ToLower(item.Name)]; ok {
			continue
		}
		if _, err := svc.Create(ctx, item); err != nil {
			logger.Error().Err(err).Str("product", item.Name).Msg("seed product")
		}
	}
}

func seedCoupons(ctx context.Context, logger zerolog.Logger, svc *coupon.Service) {
	coupons := []coupon.Input{
		{Code: "CAFE10", PromoteType: "percentage", Discount: 10, Description: "10% off any order"},
		{Code: "GIAM20K", PromoteType: "fixed", Discount: 20000, Description: "20.000đ off"},
		{Code: "BANMOI", PromoteType: "Phần trăm", Discount: 15, Description: "15% off for new members"},
	}
	for _, c := range coupons {
		if _, err := svc.Create(ctx, c); err != nil && !errors.Is(err, coupon.ErrDuplicateCode) {
			logger.Error().Err(err).Str("code", c.Code).Msg("seed coupon")
		}
	}
}

func seedCustomers(ctx context.Context, logger zerolog.Logger, svc *membership.Service) {
	customers := []struct {
		Phone, Name, Rank string
	}{
		{"0901234567", "Nguyễn Văn An", "gold"},
		{"0912345678", "Trần Thị Bình", "silver"},
		{"0987654321", "Lê Minh Châu", ""},
	}
	for _, c := range customers {
		if _, err := svc.Register(ctx, c.Phone, c.Name); err != nil {
			logger.Error().Err(err).Str("phone", c.Phone).Msg("seed customer")
			continue
		}
		if c.Rank == "" {
			continue
		}
		if _, err := svc.SetRank(ctx, c.Phone, c.Rank); err != nil {
			logger.Error().Err(err).Str("phone", c.Phone).Msg("seed customer rank")
		}
	}
}
