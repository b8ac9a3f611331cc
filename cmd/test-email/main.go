// Isolated test for SMTP delivery. Sends a plain message through the
// configured relay without touching the database or the HTTP surface.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/config"
	"github.com/lettertrack/lettertrack/internal/email"
)

func main() {
	fmt.Println("=== SMTP Delivery Test ===")
	fmt.Println("This tool sends a test email through the configured SMTP relay")
	fmt.Println()

	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <recipient-email>", os.Args[0])
	}
	recipient := os.Args[1]

	// Local overrides (SMTP_HOST, SMTP_USERNAME, ...) from .env if present.
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Relay: %s:%d\n", cfg.SMTP.Host, cfg.SMTP.Port)
	fmt.Printf("From:  %s <%s>\n", cfg.SMTP.FromName, cfg.SMTP.FromAddress)
	fmt.Printf("To:    %s\n", recipient)

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	transport := email.NewSMTPTransport(email.SMTPConfig{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		FromAddress: cfg.SMTP.FromAddress,
		FromName:    cfg.SMTP.FromName,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SMTP.Timeout)
	defer cancel()

	fmt.Println("\n[Step 1] Sending test message...")
	err = transport.Send(ctx, &email.Message{
		To:      recipient,
		Subject: "SMTP delivery test",
		Body: fmt.Sprintf("This is a delivery test sent at %s.\n\nIf you can read this, the relay configuration works.",
			time.Now().Format(time.RFC1123)),
	})
	if err != nil {
		log.Fatalf("✗ Send failed: %v", err)
	}

	fmt.Println("✓ Message accepted by the relay")
}
