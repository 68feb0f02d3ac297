//go:build !cli
// +build !cli

package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"lendhub.GO/api"
	_ "lendhub.GO/api/enrollment"
	_ "lendhub.GO/api/lending"
	"lendhub.GO/config"
	"lendhub.GO/core/auth"
	"lendhub.GO/cron/jobs"
	_ "lendhub.GO/custom"
	"lendhub.GO/graphqlserver"
	enrollmentEntity "lendhub.GO/model/entity/enrollment"
	lendingEntity "lendhub.GO/model/entity/lending"
)

func main() {
	config.LoadEnv()
	config.LoadAppConfig()

	// Initialize Redis
	config.InitRedis()
	redisStatus := "Redis not configured or not reachable, caching disabled."
	if config.RedisClient != nil {
		err := config.RedisClient.Ping(config.RedisCtx()).Err()
		if err == nil {
			redisStatus = "Redis connection successful."
		} else {
			config.RedisClient = nil // Disable Redis if not reachable
			redisStatus = "Redis configured but not reachable, caching disabled."
		}
	}
	log.Println(redisStatus)

	db, err := config.NewDB()
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}

	// Check DB connection
	sqldb, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get DB instance: %v", err)
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	log.Println("Database connection successful.")

	if err := db.AutoMigrate(
		&lendingEntity.InventoryPool{},
		&lendingEntity.LoanRequest{},
		&enrollmentEntity.EnrollmentWindow{},
		&enrollmentEntity.ProjectApplication{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	policy := config.LendingPolicy()
	jobs.Init(db, policy)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())
	e.Use(middleware.Decompress())

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start).Milliseconds()
			c.Response().Header().Set("X-Request-Duration-ms", strconv.FormatInt(duration, 10))
			log.Printf("Request duration: %d ms", duration)
			return err
		}
	})

	apiGroup := e.Group("/api")
	apiGroup.Use(auth.Middleware())
	api.ApplyModules(apiGroup, db)
	api.ApplyRoutes(e, db)

	schema, err := graphqlserver.NewSchema(db, policy)
	if err != nil {
		log.Fatalf("failed to build GraphQL schema: %v", err)
	}
	e.POST("/graphql", echo.WrapHandler(graphqlserver.Handler(schema)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on :%s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
