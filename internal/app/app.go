package app

import (
	"farmetrics-backend/internal/config"
	"farmetrics-backend/internal/database"
	"farmetrics-backend/internal/farms"
	"farmetrics-backend/internal/health"
	"farmetrics-backend/internal/history"
	"farmetrics-backend/internal/middleware"
	"farmetrics-backend/internal/proximity"
	"farmetrics-backend/internal/regions"
	"farmetrics-backend/internal/visits"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all global middleware and route
// registration. DB and Redis are nil when the corresponding URL is unset
// (e.g. handler tests wire their own).
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.OrgContext())

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	healthHandlers := &health.Handlers{Rdb: rdb}
	if db != nil {
		healthHandlers.DB = &gormDBPinger{db: db}
	}
	app.Get("/health/json", healthHandlers.JSON)

	if db != nil {
		recorder := history.LogRecorder{}

		regionService := &regions.Service{DB: db, Cache: rdb}
		regionHandlers := &regions.Handlers{Service: regionService}
		regionGroup := app.Group("/api/v1/regions", middleware.RequireOrg())
		regionGroup.Get("/hierarchy", regionHandlers.GetHierarchy)
		regionGroup.Post("/", regionHandlers.CreateRegion)
		regionGroup.Get("/:region_id", regionHandlers.GetRegion)
		regionGroup.Put("/:region_id", regionHandlers.UpdateRegion)
		regionGroup.Delete("/:region_id", regionHandlers.DeleteRegion)
		regionGroup.Get("/:region_id/path", regionHandlers.GetRegionPath)
		regionGroup.Get("/:region_id/children", regionHandlers.GetRegionChildren)

		farmService := &farms.Service{DB: db, Recorder: recorder}
		farmHandlers := &farms.Handlers{Service: farmService}
		proximityService := &proximity.Service{DB: db}
		proximityHandlers := &proximity.Handlers{Service: proximityService}
		farmGroup := app.Group("/api/v1/farms", middleware.RequireOrg())
		farmGroup.Post("/nearby", proximityHandlers.NearbyFarms)
		farmGroup.Post("/", farmHandlers.CreateFarm)
		farmGroup.Get("/", farmHandlers.ListFarms)
		farmGroup.Get("/:farm_id", farmHandlers.GetFarm)
		farmGroup.Put("/:farm_id", farmHandlers.UpdateFarm)
		farmGroup.Delete("/:farm_id", farmHandlers.DeleteFarm)
		farmGroup.Post("/:farm_id/verify", farmHandlers.VerifyFarm)
		farmGroup.Post("/:farm_id/transfer", farmHandlers.TransferOwnership)
		farmGroup.Post("/:farm_id/boundary", farmHandlers.AssignBoundary)
		farmGroup.Post("/:farm_id/boundary-points", farmHandlers.AddBoundaryPoint)
		farmGroup.Get("/:farm_id/boundary-points", farmHandlers.ListBoundaryPoints)
		farmGroup.Post("/:farm_id/boundary-points/build", farmHandlers.BuildBoundary)

		visitService := &visits.Service{DB: db}
		visitHandlers := &visits.Handlers{Service: visitService}
		visitGroup := app.Group("/api/v1/visits", middleware.RequireOrg())
		visitGroup.Post("/", visitHandlers.CreateVisit)
		visitGroup.Get("/:visit_id", visitHandlers.GetVisit)
		visitGroup.Put("/:visit_id", visitHandlers.UpdateVisit)
	}

	return app, db, rdb, nil
}
