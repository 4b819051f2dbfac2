package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "minishop-checkout",
		Usage:   "Checkout service proxying browser checkouts to the PayPal Orders API",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the checkout HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides HTTP_ADDR)",
					},
				},
				Action: serveCommand,
			},
			{
				Name:   "token",
				Usage:  "Fetch one access token from the configured gateway and print its type and expiry",
				Action: tokenCommand,
			},
		},
		Action: serveCommand,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
