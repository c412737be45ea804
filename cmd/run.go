package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.infratographer.com/x/viperx"

	"go.infratographer.com/loadbalancer-controlplane/internal/api"
	"go.infratographer.com/loadbalancer-controlplane/internal/config"
	"go.infratographer.com/loadbalancer-controlplane/internal/dispatcher"
	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/driver/haproxy"
	"go.infratographer.com/loadbalancer-controlplane/internal/driver/remote"
	"go.infratographer.com/loadbalancer-controlplane/internal/pubsub"
	"go.infratographer.com/loadbalancer-controlplane/internal/reconciler"
	"go.infratographer.com/loadbalancer-controlplane/internal/store"
	"go.infratographer.com/loadbalancer-controlplane/x/oauth2x"
)

const shutdownTimeout = 10 * time.Second

// runCmd starts the loadbalancer-controlplane service
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "starts the loadbalancer-controlplane service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), viper.GetViper())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.PersistentFlags().String("listen", ":8080", "API listen address")
	viperx.MustBindFlag(viper.GetViper(), "server.listen", runCmd.PersistentFlags().Lookup("listen"))

	runCmd.PersistentFlags().String("database-path", "", "sqlite database path")
	viperx.MustBindFlag(viper.GetViper(), "database.path", runCmd.PersistentFlags().Lookup("database-path"))

	runCmd.PersistentFlags().String("nats-url", "", "NATS server url for status events, empty disables publishing")
	viperx.MustBindFlag(viper.GetViper(), "nats.url", runCmd.PersistentFlags().Lookup("nats-url"))

	runCmd.PersistentFlags().String("nats-creds-file", "", "NATS user credentials file")
	viperx.MustBindFlag(viper.GetViper(), "nats.creds_file", runCmd.PersistentFlags().Lookup("nats-creds-file"))

	runCmd.PersistentFlags().String("nats-subject-prefix", "", "subject prefix for status events")
	viperx.MustBindFlag(viper.GetViper(), "nats.subject_prefix", runCmd.PersistentFlags().Lookup("nats-subject-prefix"))

	runCmd.PersistentFlags().String("default-provider", "", "provider used when a load balancer names none")
	viperx.MustBindFlag(viper.GetViper(), "dispatch.default_provider", runCmd.PersistentFlags().Lookup("default-provider"))

	oauth2x.MustViperFlags(viper.GetViper(), runCmd.Flags())
}

func run(cmdCtx context.Context, v *viper.Viper) error {
	if err := validateMandatoryFlags(); err != nil {
		return err
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	ctx, cancel := context.WithCancel(cmdCtx)
	defer cancel()

	go func() {
		<-c
		cancel()
	}()

	db, err := store.New(ctx, config.AppConfig.Database.Path, store.WithLogger(logger))
	if err != nil {
		logger.Fatalw("failed to open store", "error", err)
	}

	defer db.Close()

	completionOpts := []dispatcher.CompletionOption{dispatcher.WithCompletionLogger(logger)}

	var publisher *pubsub.Publisher

	if config.AppConfig.NATS.URL != "" {
		pubOpts := []pubsub.PublisherOption{pubsub.WithLogger(logger)}

		if config.AppConfig.NATS.CredsFile != "" {
			pubOpts = append(pubOpts, pubsub.WithUserCredentials(config.AppConfig.NATS.CredsFile))
		}

		if config.AppConfig.NATS.SubjectPrefix != "" {
			pubOpts = append(pubOpts, pubsub.WithSubjectPrefix(config.AppConfig.NATS.SubjectPrefix))
		}

		publisher = pubsub.NewPublisher(config.AppConfig.NATS.URL, pubOpts...)

		if err := publisher.Connect(); err != nil {
			logger.Fatalw("failed to connect to nats", "error", err)
		}

		defer publisher.Close()

		completionOpts = append(completionOpts, dispatcher.WithStatusPublisher(publisher))
	}

	completions := dispatcher.NewCompletions(db, completionOpts...)

	registry := driver.NewRegistry(config.AppConfig.Dispatch.DefaultProvider, driver.WithRegistryLogger(logger))

	var reconcilers []*reconciler.Reconciler

	for _, p := range config.AppConfig.Providers {
		drv, rec, err := buildDriver(ctx, p, db, completions)
		if err != nil {
			logger.Fatalw("failed to build driver", "provider", p.Name, "kind", p.Kind, "error", err)
		}

		if rec != nil {
			reconcilers = append(reconcilers, rec)
		}

		registry.Register(drv)

		logger.Infow("registered provider", "provider", p.Name, "kind", p.Kind)
	}

	// refuse to start while stored load balancers reference unknown providers
	if err := registry.CheckOrphans(ctx, db); err != nil {
		logger.Fatalw("provider check failed", "error", err)
	}

	disp := dispatcher.New(db, registry,
		dispatcher.WithLogger(logger),
		dispatcher.WithFlavorProviders(config.AppConfig.Dispatch.Flavors),
	)

	e := echo.New()
	e.HideBanner = true

	router := api.NewRouter(disp, api.WithRouterLogger(logger))
	router.Routes(e.Group("/v1"))

	go func() {
		if err := e.Start(config.AppConfig.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("api server failed", "error", err)
		}
	}()

	logger.Infow("api server started", "listen", config.AppConfig.Server.Listen)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("api server shutdown failed", "error", err)
	}

	for _, rec := range reconcilers {
		rec.Shutdown()
	}

	return nil
}

// buildDriver turns one provider config entry into a registered driver,
// together with its reconciler for async rest providers.
func buildDriver(ctx context.Context, p config.Provider, db *store.Store, completions *dispatcher.Completions) (driver.Driver, *reconciler.Reconciler, error) {
	switch p.Kind {
	case config.ProviderKindHAProxy:
		supervisorOpts := []haproxy.SupervisorOption{haproxy.WithSupervisorLogger(logger)}

		if p.Binary != "" {
			supervisorOpts = append(supervisorOpts, haproxy.WithBinary(p.Binary))
		}

		supervisor := haproxy.NewSupervisor(p.StateDir, supervisorOpts...)

		if err := sweepInstances(ctx, p.Name, db, supervisor); err != nil {
			logger.Warnw("orphaned instance sweep failed", "provider", p.Name, "error", err)
		}

		return haproxy.NewDriver(p.Name, supervisor, completions, haproxy.WithLogger(logger)), nil, nil

	case config.ProviderKindREST, config.ProviderKindRESTAsync:
		client := newRemoteClient(ctx, p)

		opts := []remote.Option{
			remote.WithLogger(logger),
			remote.WithCapabilities(driver.Capabilities{
				AllocatesVIP:      p.AllocatesVIP,
				AllowsGraphCreate: p.GraphCreate,
			}),
		}

		var rec *reconciler.Reconciler

		if p.Kind == config.ProviderKindRESTAsync {
			recOpts := []reconciler.Option{reconciler.WithLogger(logger)}

			if p.PollInterval > 0 {
				recOpts = append(recOpts, reconciler.WithPollInterval(p.PollInterval))
			}

			if p.PollTimeout > 0 {
				recOpts = append(recOpts, reconciler.WithPollTimeout(p.PollTimeout))
			}

			rec = reconciler.New(client, completions, recOpts...)
			opts = append(opts, remote.WithTracker(rec))
		}

		return remote.NewDriver(p.Name, client, completions, opts...), rec, nil

	default:
		return nil, nil, ErrProviderKindUnknown
	}
}

// sweepInstances reaps haproxy state directories whose load balancer no
// longer exists or has moved to another provider.
func sweepInstances(ctx context.Context, provider string, db *store.Store, supervisor *haproxy.Supervisor) error {
	lbs, err := db.ListLoadBalancers(ctx)
	if err != nil {
		return err
	}

	known := map[string]bool{}

	for _, l := range lbs {
		if l.Provider == provider {
			known[l.ID] = true
		}
	}

	return supervisor.RemoveOrphans(ctx, known)
}

// newRemoteClient builds the backend http client, oauth2-authenticated when
// an OIDC issuer is configured.
func newRemoteClient(ctx context.Context, p config.Provider) *remote.Client {
	opts := []remote.ClientOption{remote.WithClientLogger(logger)}

	if config.AppConfig.OIDC.Client.TokenURL != "" {
		tokenSrc := oauth2x.NewClientCredentialsTokenSrc(ctx, config.AppConfig.OIDC.Client)
		opts = append(opts, remote.WithHTTPClient(oauth2x.NewClient(ctx, tokenSrc)))
	}

	return remote.NewClient(p.URL, opts...)
}

// validateMandatoryFlags collects the mandatory flag validation
func validateMandatoryFlags() error {
	errs := []error{}

	if config.AppConfig.Database.Path == "" {
		errs = append(errs, ErrDatabasePathRequired)
	}

	if len(config.AppConfig.Providers) == 0 {
		errs = append(errs, ErrNoProvidersConfigured)
	}

	names := map[string]bool{}

	for _, p := range config.AppConfig.Providers {
		names[p.Name] = true

		switch p.Kind {
		case config.ProviderKindHAProxy:
			if p.StateDir == "" {
				errs = append(errs, ErrProviderStateDirRequired)
			}
		case config.ProviderKindREST, config.ProviderKindRESTAsync:
			if p.URL == "" {
				errs = append(errs, ErrProviderURLRequired)
			}
		default:
			errs = append(errs, ErrProviderKindUnknown)
		}
	}

	if config.AppConfig.Dispatch.DefaultProvider != "" && !names[config.AppConfig.Dispatch.DefaultProvider] {
		errs = append(errs, ErrDefaultProviderUnknown)
	}

	if len(errs) == 0 {
		return nil
	}

	return errors.Join(errs...) //nolint:goerr113
}
