package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	term "golang.org/x/term"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type AuthCommands struct {
	Login    LoginCommand    `cmd:"" name:"login" help:"Log in and store the tokens." group:"AUTH"`
	Logout   LogoutCommand   `cmd:"" name:"logout" help:"Revoke and forget the stored tokens." group:"AUTH"`
	WhoAmI   WhoAmICommand   `cmd:"" name:"whoami" help:"Show the logged in user." group:"AUTH"`
	Password PasswordCommand `cmd:"" name:"password" help:"Change the password of the logged in user." group:"AUTH"`
}

type LoginCommand struct {
	Username string `arg:"" name:"username" help:"User name"`
	Password string `name:"password" env:"AITEMPLATE_PASSWORD" help:"Password (prompted for when not set)"`
}

type LogoutCommand struct{}

type WhoAmICommand struct{}

type PasswordCommand struct {
	Old string `name:"old" help:"Current password (prompted for when not set)"`
	New string `name:"new" help:"New password (prompted for when not set)"`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *LoginCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.anonymous()
	if err != nil {
		return err
	}
	password := cmd.Password
	if password == "" {
		if password, err = prompt("Password: "); err != nil {
			return err
		}
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "LoginCommand")
	defer func() { endSpan(err) }()

	resp, err := client.Login(parent, cmd.Username, password)
	if err != nil {
		return err
	}
	if err := saveToken(ctx.defaults, resp.Token(time.Now())); err != nil {
		return err
	}
	return printClaims(resp.AccessToken)
}

func (cmd *LogoutCommand) Run(ctx *Globals) (err error) {
	if ctx.defaults.GetString(defaultAccessToken) == "" {
		return fmt.Errorf("not logged in")
	}
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "LogoutCommand")
	defer func() { endSpan(err) }()

	// Forget the tokens even when the backend cannot revoke them
	logoutErr := client.Logout(parent)
	if err := ctx.defaults.Set(map[string]any{
		defaultAccessToken:  nil,
		defaultRefreshToken: nil,
		defaultExpiry:       nil,
	}); err != nil {
		return err
	}
	if logoutErr != nil {
		ctx.logger.Warn("logout", "error", logoutErr)
	}
	return nil
}

func (cmd *WhoAmICommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "WhoAmICommand")
	defer func() { endSpan(err) }()

	user, err := client.Me(parent)
	if err != nil {
		return err
	}
	fmt.Println(user)

	// The token in use, which may have been refreshed by the request
	if tokens := client.TokenSource(); tokens != nil {
		if token, err := tokens.Token(); err == nil {
			return printClaims(token.AccessToken)
		}
	}
	return nil
}

func (cmd *PasswordCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	if cmd.Old == "" {
		if cmd.Old, err = prompt("Current password: "); err != nil {
			return err
		}
	}
	if cmd.New == "" {
		if cmd.New, err = prompt("New password: "); err != nil {
			return err
		}
		confirm, err := prompt("Repeat new password: ")
		if err != nil {
			return err
		}
		if confirm != cmd.New {
			return fmt.Errorf("passwords do not match")
		}
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "PasswordCommand")
	defer func() { endSpan(err) }()

	return client.ChangePassword(parent, cmd.Old, cmd.New)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// prompt reads a line from the terminal without echo
func prompt(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is required when not reading from a terminal", strings.TrimSuffix(strings.ToLower(label), ": "))
	}
	fmt.Fprint(os.Stderr, label)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func printClaims(token string) error {
	claims, err := schema.TokenClaims(token)
	if err != nil {
		return err
	}
	fmt.Println(claims)
	if claims.Expired(time.Now()) {
		fmt.Fprintln(os.Stderr, "token has expired")
	}
	return nil
}
