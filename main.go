package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"busline/internal/clock"
	intconfig "busline/internal/config"
	api "busline/internal/http"
	"busline/internal/http/handlers"
	"busline/internal/notify"
	"busline/internal/repositories"
	"busline/internal/services"
	"busline/internal/session"
	"busline/internal/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	env := intconfig.LoadEnv()
	utils.InitLogger(env.LogLevel, env.LogFormat)
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	biz, err := clock.NewBusiness(env.BusinessTZ)
	if err != nil {
		utils.Log().Fatalf("invalid business timezone %q: %v", env.BusinessTZ, err)
	}

	db := intconfig.ConnectDB(env.DBDSN)
	defer intconfig.CloseDB()
	if err := intconfig.Migrate(db); err != nil {
		utils.Log().Fatalf("migration failed: %v", err)
	}

	var pub notify.Publisher = notify.LogPublisher{}
	if env.KafkaBrokers != "" {
		kafka := notify.NewKafkaPublisher(env.KafkaBrokers, env.KafkaTopic)
		defer kafka.Close()
		pub = kafka
	}
	notifier := notify.Notifier{Pub: pub}

	tripRepo := repositories.TripRepo{}
	bookingRepo := repositories.BookingRepo{}
	passengerRepo := repositories.PassengerRepo{}
	paymentRepo := repositories.PaymentRepo{}
	staffRepo := repositories.StaffRepo{}
	trackingRepo := repositories.TrackingRepo{}
	auditRepo := repositories.AuditRepo{}
	sessions := session.Store{TTL: env.SessionTTL}

	bookingSvc := services.BookingService{
		TripRepo:      tripRepo,
		BookingRepo:   bookingRepo,
		PassengerRepo: passengerRepo,
		PaymentRepo:   paymentRepo,
		AuditRepo:     auditRepo,
		Monitor:       services.AutoHaltMonitor{TripRepo: tripRepo, AuditRepo: auditRepo},
		Notifier:      notifier,
	}
	lifecycleSvc := services.LifecycleService{
		TripRepo:     tripRepo,
		BookingRepo:  bookingRepo,
		StaffRepo:    staffRepo,
		TrackingRepo: trackingRepo,
		AuditRepo:    auditRepo,
	}
	reconcileSvc := services.ReconcileService{
		TripRepo:     tripRepo,
		BookingRepo:  bookingRepo,
		PaymentRepo:  paymentRepo,
		StaffRepo:    staffRepo,
		TrackingRepo: trackingRepo,
		AuditRepo:    auditRepo,
		Sessions:     sessions,
		Lifecycle:    lifecycleSvc,
		Notifier:     notifier,
	}

	r := api.NewRouter(env, api.Handlers{
		Auth:      handlers.AuthHandler{Secret: []byte(env.JWTSecret)},
		Session:   handlers.SessionHandler{Store: sessions, Clock: biz},
		Booking:   handlers.BookingHandler{Base: bookingSvc, Sessions: sessions, Clock: biz},
		Trip:      handlers.TripHandler{TripRepo: tripRepo, PassengerRepo: passengerRepo},
		Reconcile: handlers.ReconcileHandler{Service: reconcileSvc, Clock: biz},
	})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Background reconciliation loop. Stops with the server.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(env.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				reconcileSvc.RunSweep(sweepCtx, biz.Now())
			}
		}
	}()

	go func() {
		utils.Log().Infof("server listening on %s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Log().Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	utils.Log().Info("shutting down")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Log().Fatalf("shutdown failed: %v", err)
	}
	utils.Log().Info("server stopped")
}
