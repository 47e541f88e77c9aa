package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"git.sr.ht/~jakintosh/ssoguard/internal/config"
	"git.sr.ht/~jakintosh/ssoguard/internal/database"
	"git.sr.ht/~jakintosh/ssoguard/internal/server"
	"git.sr.ht/~jakintosh/ssoguard/pkg/identity"
	"git.sr.ht/~jakintosh/ssoguard/pkg/keys"
	"git.sr.ht/~jakintosh/ssoguard/pkg/tokens"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

type ServeCmd struct {
	Server config.Server `embed:""`
}

func (cmd *ServeCmd) Run(ctx context.Context, sso *config.SSO) error {
	if err := errors.Join(sso.Validate(), cmd.Server.Validate()); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ring := keys.NewRing(sso.KeyBasePath)
	if ring.Current().Len() == 0 {
		log.Printf("serve: no keys loaded from '%s'; every token will be rejected\n", sso.KeyBasePath)
	}
	if cmd.Server.WatchKeys {
		if err := ring.Watch(ctx); err != nil {
			log.Printf("serve: not watching key directory: %v\n", err)
		}
	}

	resolver := identity.NewResolver(tokens.NewVerifier(ring, sso.URL, sso.Realm))

	var opts []server.Option
	if cmd.Server.AuditEnabled() {
		store, err := database.NewSQLiteStore(cmd.Server.AuditDBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		go store.RunPruner(ctx, cmd.Server.AuditMaxAge, pruneInterval)
		opts = append(opts, server.WithAudit(store))
	}
	if cmd.Server.AdminHash != "" {
		opts = append(opts, server.WithAdmin(cmd.Server.AdminUser, cmd.Server.AdminHash))
	}

	httpServer := &http.Server{
		Addr:         cmd.Server.Addr(),
		Handler:      server.New(resolver, ring, opts...).Router(),
		ReadTimeout:  cmd.Server.ReadTimeout,
		WriteTimeout: cmd.Server.WriteTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("serve: listening on %s for realm '%s'\n", httpServer.Addr, tokens.RealmURL(sso.URL, sso.Realm))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Printf("serve: shutting down\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
