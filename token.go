package main

import (
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/paypal"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	"github.com/urfave/cli/v2"
)

// tokenCommand checks the configured credentials with one client-credentials
// exchange. The token itself is never printed.
func tokenCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	baseLogger, err := logging.NewLogger(cfg.App, cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()

	tel := infraobs.New(nil, zaplogger.New(baseLogger), nil, nil)
	tok, err := paypal.New(cfg.PayPal, tel).FetchToken(c.Context)
	if err != nil {
		return fmt.Errorf("token exchange against %s failed: %w", cfg.PayPal.URL, err)
	}

	fmt.Fprintf(c.App.Writer, "token_type: %s\n", tok.Type())
	if !tok.Expiry.IsZero() {
		fmt.Fprintf(c.App.Writer, "expires_at: %s (in %s)\n",
			tok.Expiry.UTC().Format(time.RFC3339),
			time.Until(tok.Expiry).Round(time.Second),
		)
	}
	return nil
}
