// Command notifycheck sends a sample order through the configured
// notification channels and prints the per-channel report. It uses the same
// configuration sources and channel clients as the storefront server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homly/storefront/internal/config"
	"github.com/homly/storefront/internal/logging"
	"github.com/homly/storefront/internal/notify"
	"github.com/homly/storefront/internal/order"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, nil))
}

// run returns the process exit code: 0 when every selected channel that is
// enabled delivered, 1 on delivery failures, 2 on usage or config errors.
// A non-nil build replaces the production channel constructor.
func run(args []string, stdout, stderr io.Writer, build func(*config.Config) []notify.Channel) int {
	fs := flag.NewFlagSet("notifycheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgFile := fs.String("config", "", "Path to config file (YAML)")
	channel := fs.String("channel", "all", "Channel to test: email, telegram, whatsapp or all")
	envHelp := fs.Bool("env-help", false, "List the recognized environment variables and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *envHelp {
		config.WriteEnvUsage(stdout)
		return 0
	}

	cfg := config.DefaultConfig()
	if *cfgFile != "" {
		c, err := config.LoadConfigFromFile(*cfgFile)
		if err != nil {
			fmt.Fprintf(stderr, "failed loading config: %v\n", err)
			return 2
		}
		cfg = c
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cleanup, err := logging.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 2
	}
	defer cleanup()
	for _, w := range cfg.Validate() {
		logging.Get().Warn().Msg(w)
	}

	if build == nil {
		build = notify.ChannelsFromConfig
	}
	selected, err := selectChannels(build(cfg), *channel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	report := notify.NewDispatcher(cfg.NotifyTimeout, selected...).NotifyOrder(context.Background(), sampleOrder(time.Now()))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if failed := report.Failed(); len(failed) > 0 {
		fmt.Fprintf(stderr, "delivery failed: %s\n", strings.Join(failed, ", "))
		return 1
	}
	return 0
}

func selectChannels(all []notify.Channel, name string) ([]notify.Channel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "all" {
		return all, nil
	}
	for _, ch := range all {
		if ch.Name() == name {
			return []notify.Channel{ch}, nil
		}
	}
	return nil, fmt.Errorf("unknown channel %q", name)
}

func sampleOrder(now time.Time) order.Order {
	return order.Order{
		ID:            "notifycheck" + now.UTC().Format("20060102150405"),
		Total:         decimal.RequireFromString("1499.00"),
		PaymentMethod: order.PaymentCOD,
		ShippingAddress: order.Address{
			Name:       "Test Customer",
			Street:     "1 Sample Street",
			City:       "Testville",
			PostalCode: "00000",
		},
		Items: []order.Item{
			{Name: "Sample Lamp", Quantity: 1, Price: decimal.RequireFromString("999.00")},
			{Name: "Cushion Cover", Quantity: 2, Price: decimal.RequireFromString("250.00")},
		},
		User:      &order.Customer{Name: "Test Customer", Email: "customer@example.com"},
		CreatedAt: now.UTC(),
	}
}
