// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// tap-zuora extracts data from a Zuora tenant as a Singer message stream.
// Discovery mode prints the catalog of exportable objects; sync mode
// replays every selected stream from its bookmark, emitting SCHEMA,
// RECORD and STATE messages on stdout. Logs go to stderr so stdout stays
// a clean message stream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/singer-io/tap-zuora/apis"
	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/discover"
	"github.com/singer-io/tap-zuora/singer"
	"github.com/singer-io/tap-zuora/state"
	"github.com/singer-io/tap-zuora/sync"
	"github.com/singer-io/tap-zuora/zuora"
)

var (
	rootCmd = &cobra.Command{
		Use:   "tap-zuora",
		Short: "Singer tap for extracting data from the Zuora API",
		RunE:  cmdRun,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Verify the configured credentials and connectivity",
		RunE:  cmdCheck,
	}

	runFlags struct {
		Config   string
		Catalog  string
		State    string
		Discover bool
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&runFlags.Config, "config", "", "path to the tenant configuration file")
	rootCmd.Flags().StringVar(&runFlags.Catalog, "catalog", "", "path to the catalog file produced by discovery")
	rootCmd.Flags().StringVar(&runFlags.State, "state", "", "path to the state file from a previous run")
	rootCmd.Flags().BoolVar(&runFlags.Discover, "discover", false, "discover the catalog instead of syncing")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(checkCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := newLogger()
	defer func() { _ = log.Sync() }()

	ctx = contextWithLogger(ctx, log)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("fatal error", zap.Error(err))
		os.Exit(1)
	}
}

type loggerKey struct{}

func contextWithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

func loggerFrom(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// newLogger builds the stderr console logger. Stdout is reserved for the
// Singer message stream.
func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	log, err := config.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	return log
}

// tapConfig is the parsed tenant configuration file.
type tapConfig struct {
	zuora zuora.Config

	startDate  string
	windowSize time.Duration
}

// loadConfig reads and validates the JSON configuration file.
func loadConfig(log *zap.Logger, path string) (*tapConfig, error) {
	vip := viper.New()
	vip.SetConfigFile(path)
	vip.SetConfigType("json")
	if err := vip.ReadInConfig(); err != nil {
		return nil, errs.New("reading config file: %v", err)
	}

	authType, err := zuora.ParseAuthType(vip.GetString("auth_type"))
	if err != nil {
		return nil, err
	}

	config := &tapConfig{
		zuora: zuora.Config{
			Username:  vip.GetString("username"),
			Password:  vip.GetString("password"),
			AuthType:  authType,
			PartnerID: vip.GetString("partner_id"),
			Sandbox:   vip.GetBool("sandbox"),
			European:  vip.GetBool("european"),
		},
		startDate: vip.GetString("start_date"),
	}

	if authType == zuora.AuthOAuth {
		// OAuth tenants configure a client credential pair instead of the
		// API key pair.
		if clientID := vip.GetString("client_id"); clientID != "" {
			config.zuora.Username = clientID
			config.zuora.Password = vip.GetString("client_secret")
		}
	}

	// Only the exact value REST selects the synchronous driver; any other
	// value means AQuA.
	apiType := vip.GetString("api_type")
	config.zuora.UseRest = apiType == "REST"
	if !config.zuora.UseRest && apiType != "" && apiType != "AQUA" {
		log.Warn("unrecognized api_type, using the AQuA API", zap.String("api_type", apiType))
	}

	if config.zuora.Username == "" || config.zuora.Password == "" {
		return nil, errs.New("config requires credentials")
	}
	if config.startDate == "" {
		return nil, errs.New("config requires start_date")
	}
	if !config.zuora.UseRest && config.zuora.PartnerID == "" {
		return nil, errs.New("partner_id is required for the AQuA API; " +
			"to obtain one, contact Zuora support or set api_type to REST")
	}

	if days := vip.GetFloat64("window_size"); days > 0 {
		config.windowSize = time.Duration(days * float64(24*time.Hour))
	}

	return config, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	var cat catalog.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, errs.New("parsing catalog file: %v", err)
	}
	return &cat, nil
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	log := loggerFrom(ctx)

	config, err := loadConfig(log, runFlags.Config)
	if err != nil {
		return err
	}

	client, err := zuora.NewClient(ctx, log.Named("zuora"), config.zuora, nil)
	if err != nil {
		return err
	}
	api := apis.ForClient(log, client)
	log.Info("using export api", zap.String("api", api.Name()))

	if runFlags.Discover {
		return runDiscover(ctx, log, client, api)
	}
	return runSync(ctx, log, api, config)
}

// cmdCheck verifies the credentials end to end: resolving the data center
// already proves authentication, and describing the probe object proves
// the export surface answers.
func cmdCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := loggerFrom(ctx)

	config, err := loadConfig(log, runFlags.Config)
	if err != nil {
		return err
	}

	client, err := zuora.NewClient(ctx, log.Named("zuora"), config.zuora, nil)
	if err != nil {
		return err
	}
	if _, err := client.RestRequest(ctx, http.MethodGet, "v1/describe/Account", nil); err != nil {
		return err
	}
	log.Info("connection check succeeded", zap.String("base_url", client.BaseURL()))
	return nil
}

func runDiscover(ctx context.Context, log *zap.Logger, client *zuora.Client, api apis.ExportAPI) error {
	log.Info("starting discovery")

	cat, err := discover.DiscoverStreams(ctx, log.Named("discover"), client, api)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cat); err != nil {
		return errs.Wrap(err)
	}
	log.Info("finished discovery", zap.Int("streams", len(cat.Streams)))
	return nil
}

func runSync(ctx context.Context, log *zap.Logger, api apis.ExportAPI, config *tapConfig) error {
	if runFlags.Catalog == "" {
		return errs.New("sync mode requires a catalog; run with --discover first")
	}

	cat, err := loadCatalog(runFlags.Catalog)
	if err != nil {
		return err
	}

	var stateData []byte
	if runFlags.State != "" {
		stateData, err = os.ReadFile(runFlags.State)
		if err != nil {
			return errs.Wrap(err)
		}
	}
	st, err := state.Load(stateData, cat, config.startDate, time.Now)
	if err != nil {
		return err
	}

	syncer := sync.New(log.Named("sync"), api, singer.NewWriter(os.Stdout), st,
		sync.Config{WindowSize: config.windowSize})
	return syncer.Run(ctx, cat)
}
