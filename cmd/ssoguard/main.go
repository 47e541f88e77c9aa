package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.sr.ht/~jakintosh/ssoguard/internal/config"
)

type CLI struct {
	Config kong.ConfigFlag `help:"YAML configuration file." placeholder:"PATH"`
	SSO    config.SSO      `embed:""`

	Serve        ServeCmd        `cmd:"" help:"Serve identity resolution over HTTP."`
	Verify       VerifyCmd       `cmd:"" help:"Verify a token and print its user id."`
	Keys         KeysCmd         `cmd:"" help:"List the public keys in the key directory."`
	HashPassword HashPasswordCmd `cmd:"" help:"Print the bcrypt hash of an admin password."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli,
		kong.Name("ssoguard"),
		kong.Description("Verifies SSO bearer tokens and resolves them to user ids."),
		kong.Configuration(config.YAML, "/etc/ssoguard/config.yaml", "~/.config/ssoguard.yaml"),
		kong.UsageOnError(),
	)

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.BindTo(os.Stdout, (*io.Writer)(nil))
	cliCtx.Bind(&cli.SSO)

	if err := cliCtx.Run(); err != nil {
		log.Printf("ssoguard: %v\n", err)
		os.Exit(1)
	}
}
