package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/config"
	"github.com/sitegrid/sitegrid/internal/invitations"
	"github.com/sitegrid/sitegrid/internal/signalbus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set using ldflags at build time.
var Version = "dev"

func main() {
	// Override usage to capitalize "Show"
	cli.HelpFlag.(*cli.BoolFlag).Usage = "Show help"
	app := &cli.Command{
		Name:  "sitectl",
		Usage: "manage the contractor invitations sent to your organization",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path of the config file (default ~/.config/sitectl/config.yaml)",
			},
			&cli.StringFlag{
				Name:  "service-url",
				Usage: "Api server URL",
			},
			&cli.StringFlag{
				Name:  "token-file",
				Usage: "File the sign-in token is kept in",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Output format: json, json-raw, yaml, no-header, column (default columns)",
			},
			&cli.StringFlag{
				Name:  "query",
				Usage: "jq filter applied to json and yaml output",
			},
			&cli.BoolFlag{
				Name:  "insecure-skip-tls-verify",
				Usage: "If true, server certificates will not be checked for validity. This will make your HTTPS connections insecure",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Get the version of sitectl",
				Action: func(ctx context.Context, command *cli.Command) error {
					fmt.Fprintf(stdout, "version: %s\n", Version)
					return nil
				},
			},
			createLoginCommand(),
			createLogoutCommand(),
			createInvitationCommand(),
		},
	}
	sort.Slice(app.Commands, func(i, j int) bool {
		return app.Commands[i].Name < app.Commands[j].Name
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage prefers the gateway's human readable message.
func errorMessage(err error) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return client.Message(err)
	}
	return err.Error()
}

// loadConfig reads the config file and environment, then applies the global flags.
func loadConfig(command *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}
	if command.IsSet("service-url") {
		cfg.ServiceURL = command.String("service-url")
	}
	if command.IsSet("token-file") {
		cfg.TokenFile = command.String("token-file")
	}
	if command.IsSet("output") {
		cfg.Output = command.String("output")
	}
	if command.Bool("debug") {
		cfg.Debug = true
	}
	if command.Bool("insecure-skip-tls-verify") {
		cfg.InsecureTLS = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logConfig := zap.NewProductionConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		logConfig.DisableStacktrace = true
		logConfig.Encoding = "console"
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logConfig.OutputPaths = []string{"stderr"}
		logger, err = logConfig.Build()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// session is what every invitation command needs: settings, a logger, the
// gateway and a signal bus shared by the controllers.
type session struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	client *client.Client
	bus    signalbus.SignalBus
}

func newSession(command *cli.Command) (*session, error) {
	cfg, err := loadConfig(command)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	store := client.NewFileTokenStore(cfg.TokenFile)
	credentials, err := client.NewStoredCredentials(store, func() {
		fmt.Fprintln(os.Stderr, "Your session has expired. Run 'sitectl login' to sign in again.")
	})
	if err != nil {
		return nil, err
	}
	c, err := client.NewClient(cfg.ServiceURL, createClientOptions(cfg, logger, credentials)...)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		client: c,
		bus:    signalbus.NewSignalBus(),
	}, nil
}

func createClientOptions(cfg *config.Config, logger *zap.SugaredLogger, credentials client.CredentialProvider) []client.Option {
	options := []client.Option{
		client.WithCredentials(credentials),
		client.WithUserAgent(fmt.Sprintf("sitectl/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)),
		client.WithLogger(logger),
		client.WithTimeout(cfg.RequestTimeout.Std()),
		client.WithRetries(cfg.Retries, cfg.RetryWait.Std()),
		client.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	}
	if cfg.InsecureTLS { // #nosec G402
		options = append(options, client.WithTLSConfig(&tls.Config{
			InsecureSkipVerify: true,
		}))
	}
	return options
}

func (s *session) options() []invitations.Option {
	return []invitations.Option{
		invitations.WithLogger(s.logger),
		invitations.WithSignalBus(s.bus),
		invitations.WithPerPage(s.cfg.PerPage),
		invitations.WithCacheTTL(s.cfg.CacheTTL.Std()),
	}
}

func (s *session) close() {
	_ = s.logger.Sync()
}
