package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/internal/server"
	"github.com/buddyengineerz/storefront/pkg/cache"
	"github.com/buddyengineerz/storefront/pkg/router"
	"github.com/buddyengineerz/storefront/pkg/ws"
)

// buddy serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, gRPC health, queue workers and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.Start(ctx)
	},
}

// buddy route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := offlineRouter()
		if err != nil {
			return err
		}
		return printRoutes(os.Stdout, r.Routes())
	},
}

// offlineRouter builds the route table without touching the database
// or Redis. Handlers are never invoked.
func offlineRouter() (*router.Router, error) {
	a := &server.App{
		Services: services.New(nil, cache.NewMemory(), cart.NewMemoryStore(), services.DefaultPricingRules()),
		Feed:     ws.NewHub(),
	}
	return a.Router()
}

func printRoutes(out io.Writer, infos []router.RouteInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No named routes registered.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tNAME")
	fmt.Fprintln(w, "------\t----\t----")
	for _, ri := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
	}
	return w.Flush()
}
