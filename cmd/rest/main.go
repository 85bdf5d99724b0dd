package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mindful-be/internal/bootstrap"
	"mindful-be/internal/config"
	"mindful-be/internal/model"
	"mindful-be/internal/server"
	"mindful-be/internal/tracer"
	"mindful-be/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (optional)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		var err error
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		if err := database.Migrate(gormDB, model.All()...); err != nil {
			log.Panicf("Failed to migrate: %v", err)
		}
	} else {
		log.Println("[INFO] DB_CONNECTION_STRING not set, sessions are kept in memory only")
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go container.WebSocketHub.Run(ctx)

	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	if container.JournalService != nil && container.NatsSub != nil {
		if err := container.JournalService.Start(ctx, container.NatsSub); err != nil {
			log.Printf("[WARN] Realm journal consumer not started: %v", err)
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
	container.Close()
}
