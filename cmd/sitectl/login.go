package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

func createLoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and keep the token for later commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "username",
				Usage: "Username",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Password, prompted for when omitted on a terminal",
			},
			&cli.StringFlag{
				Name:  "issuer",
				Usage: "OIDC issuer URL, defaults to the oidc.issuer setting",
			},
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "OIDC client id, defaults to the oidc.client_id setting",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "store this access token instead of signing in with a username and password",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			return login(ctx, command)
		},
	}
}

func createLogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored sign-in token",
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}
			if err := client.NewFileTokenStore(cfg.TokenFile).Clear(); err != nil {
				return err
			}
			newPrinter(cfg.Output, "").showSuccessfully("Signed out.")
			return nil
		},
	}
}

func login(ctx context.Context, command *cli.Command) error {
	cfg, err := loadConfig(command)
	if err != nil {
		return err
	}
	store := client.NewFileTokenStore(cfg.TokenFile)
	p := newPrinter(cfg.Output, "")

	if token := strings.TrimSpace(command.String("token")); token != "" {
		if err := store.Store(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}); err != nil {
			return err
		}
		p.showSuccessfully("Token saved to %s.", store)
		return nil
	}

	opts := client.LoginOptions{
		Issuer:   cfg.OIDC.Issuer,
		ClientID: cfg.OIDC.ClientID,
		Username: command.String("username"),
		Password: command.String("password"),
	}
	if command.IsSet("issuer") {
		opts.Issuer = command.String("issuer")
	}
	if command.IsSet("client-id") {
		opts.ClientID = command.String("client-id")
	}
	if opts.Username != "" && opts.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		opts.Password = string(password)
	}
	if opts.Username == "" || opts.Password == "" {
		return errors.New("either --token or both --username and --password are required")
	}
	if cfg.InsecureTLS { // #nosec G402
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			Timeout: cfg.RequestTimeout.Std(),
		}
	}

	var token *oauth2.Token
	err = p.busy("Signing in...", func() error {
		token, err = client.Login(ctx, opts, store)
		return err
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if p.human() {
		p.showSuccessfully("Signed in as %s.", opts.Username)
		if !token.Expiry.IsZero() {
			fmt.Fprintf(os.Stderr, "The session expires at %s.\n", token.Expiry.Local().Format(LocalTimeFormat))
		}
	}
	return nil
}
