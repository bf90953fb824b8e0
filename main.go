package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courseportal/config"
	"courseportal/database"
	"courseportal/lock"
	"courseportal/routers"
	"courseportal/services/admission"
	"courseportal/services/courses"
	"courseportal/services/enrollments"
	"courseportal/services/users"
	"courseportal/utils"

	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadConfig()
	database.ConnectDb()
	cfg := config.AppConfig
	db := database.Database.Db

	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	userStore := users.NewStore(db, users.Policy{
		MaxFailedLogins: cfg.MaxFailedLogins,
		BlockDuration:   cfg.LoginBlockDuration,
	})
	courseStore := courses.NewStore(db, utils.NewContentSanitizer())
	enrollmentStore := enrollments.NewStore(db)

	coordinator := admission.NewCoordinator(
		locker,
		courseStore,
		enrollmentStore,
		userStore,
		newNotifier(cfg),
		admission.OptionsFromConfig(cfg.Lock),
	)

	scheduler := utils.NewScheduler(courseStore, enrollmentStore, userStore)
	if err := scheduler.Start(cfg.AuditSchedule, cfg.TokenCleanupSchedule); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	app := routers.NewApp(cfg, routers.Services{
		Users:       userStore,
		Courses:     courseStore,
		Catalog:     courses.NewCatalog(courseStore, enrollmentStore),
		Coordinator: coordinator,
	})

	go func() {
		log.Printf("Server is running on port %s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	scheduler.Stop()
	database.Close(db)
}

// newLocker picks the admission lock backend from LOCK_DRIVER.
func newLocker(cfg *config.Config) (lock.Locker, func()) {
	if cfg.Lock.Driver != "redis" {
		log.Println("[LOCK] using in-process locks; run a single instance")
		return lock.NewMemoryLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis at %s: %v", cfg.Redis.Addr, err)
	}
	log.Printf("[LOCK] using redis at %s", cfg.Redis.Addr)
	return lock.NewRedisLocker(client, cfg.Lock.Prefix), func() {
		if err := client.Close(); err != nil {
			log.Printf("[LOCK] closing redis: %v", err)
		}
	}
}

// newNotifier fans enrollment events out to the configured channels, nil
// when none is configured.
func newNotifier(cfg *config.Config) admission.Notifier {
	var notifiers utils.MultiNotifier
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, utils.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	if cfg.SendGridAPIKey != "" && cfg.EmailSender != "" {
		notifiers = append(notifiers, utils.NewEmailNotifier(cfg.SendGridAPIKey, cfg.EmailSender))
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}
