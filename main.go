package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	appcart "github.com/toystore/fulfillment/internal/application/cart"
	appcheckout "github.com/toystore/fulfillment/internal/application/checkout"
	apporder "github.com/toystore/fulfillment/internal/application/order"
	domcatalog "github.com/toystore/fulfillment/internal/domain/catalog"
	infracatalog "github.com/toystore/fulfillment/internal/infrastructure/catalog"
	"github.com/toystore/fulfillment/internal/infrastructure/fulfillment"
	"github.com/toystore/fulfillment/internal/infrastructure/id"
	"github.com/toystore/fulfillment/internal/infrastructure/memory"
	infraobs "github.com/toystore/fulfillment/internal/infrastructure/observability"
	"github.com/toystore/fulfillment/internal/infrastructure/observability/oteltrace"
	"github.com/toystore/fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/toystore/fulfillment/internal/infrastructure/observability/zaplogger"
	"github.com/toystore/fulfillment/internal/infrastructure/outbox"
	"github.com/toystore/fulfillment/internal/observability"
	httppresentation "github.com/toystore/fulfillment/internal/presentation/http"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "toystore-fulfillment")
	env := getenvDefault("ENV", "dev")
	addr := getenvDefault("HTTP_ADDR", ":8080")

	baseLogger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", env),
	)
	if s, ok := baseLogger.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}

	registry := prometrics.New("", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests handled.",
			"method", "route", "status",
		),
		observability.MExternalRequests: registry.Counter(
			string(observability.MExternalRequests),
			"Total number of calls to external collaborators.",
			"peer", "endpoint", "outcome",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			prometheus.DefBuckets,
			"method", "route",
		),
		observability.MExternalRequestDuration: registry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of external collaborator calls in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
	}

	tel := infraobs.New(oteltrace.New(serviceName), baseLogger, counters, histograms)
	log := tel.Logger().With(observability.F("component", "main"))

	orderRepo := memory.NewOrderRepository()
	inventoryRepo := memory.NewInventoryRepository()
	sessionStore := memory.NewSessionStore()
	idGenerator := id.NewUUIDGenerator()

	catalogProvider := infracatalog.NewBreaker("catalog", seedCatalog())
	seedInventory(inventoryRepo, log)

	bus := outbox.NewBus(tel.Logger())
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	cartService := appcart.NewService(sessionStore, catalogProvider, tel.Logger())
	checkoutUseCase := appcheckout.NewUseCase(orderRepo, inventoryRepo, sessionStore, idGenerator, bus, tel)
	orderService := apporder.NewService(orderRepo, inventoryRepo, bus, tel)

	worker := fulfillment.New(orderService, bus, tel.Logger())
	worker.Start()

	handler := httppresentation.NewHandler(cartService, checkoutUseCase, orderService, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("http_server_start",
			observability.F("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		log.Info("http_server_stopped")
	}
}

// seedCatalog returns the demo product set. Prices are in cents.
func seedCatalog() *infracatalog.Static {
	return infracatalog.NewStatic(
		domcatalog.Product{ID: 1, Name: "Wooden Train Set", Price: 3499, Active: true},
		domcatalog.Product{ID: 2, Name: "Plush Dinosaur", Price: 1999, Active: true},
		domcatalog.Product{ID: 3, Name: "Building Blocks 200pc", Price: 4999, Active: true},
		domcatalog.Product{ID: 4, Name: "Model Rocket Kit", Price: 2799, Active: true},
		domcatalog.Product{ID: 5, Name: "Retired Tin Robot", Price: 8999, Active: false},
	)
}

func seedInventory(repo *memory.InventoryRepository, log observability.Logger) {
	seeds := []struct {
		productID int64
		quantity  int
		active    bool
	}{
		{1, 25, true},
		{2, 40, true},
		{3, 12, true},
		{4, 8, true},
		{5, 3, false},
	}
	for _, s := range seeds {
		if err := repo.SetStock(s.productID, s.quantity, s.active); err != nil {
			log.Warn("inventory_seed_failed",
				observability.F("product_id", s.productID),
				observability.F("error", err.Error()),
			)
		}
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
