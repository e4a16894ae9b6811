package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	ginfw "github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	taskpay "github.com/taskpay-foundation/taskpay/go"
	httpapi "github.com/taskpay-foundation/taskpay/go/http"
	"github.com/taskpay-foundation/taskpay/go/ledger"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found. Using environment variables.")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ttl := durationEnv("LEDGER_TTL", 24*time.Hour)
	declineRate := floatEnv("PAYMENT_DECLINE_RATE", 0.1)
	latency := durationEnv("PAYMENT_LATENCY", 500*time.Millisecond)

	// Set Gin to release mode to reduce logs
	ginfw.SetMode(ginfw.ReleaseMode)

	store := taskpay.NewInMemoryTaskStore()
	provider := taskpay.NewSimulatedProvider(
		taskpay.WithLatency(latency),
		taskpay.WithDeclineRate(declineRate),
	)
	payments := taskpay.NewPaymentService(store, provider)
	records := ledger.NewInMemoryStore(ttl)

	server := httpapi.NewServer(store, payments, records)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server,
	}

	go func() {
		fmt.Printf("Task-payment server listening on port %s\n", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Forced shutdown: %v\n", err)
	}
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		fmt.Printf("Warning: invalid %s %q, using %s\n", name, raw, fallback)
		return fallback
	}
	return d
}

func floatEnv(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		fmt.Printf("Warning: invalid %s %q, using %g\n", name, raw, fallback)
		return fallback
	}
	return f
}
