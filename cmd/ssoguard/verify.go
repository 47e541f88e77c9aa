package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"git.sr.ht/~jakintosh/ssoguard/internal/config"
	"git.sr.ht/~jakintosh/ssoguard/internal/server"
	"git.sr.ht/~jakintosh/ssoguard/pkg/identity"
	"git.sr.ht/~jakintosh/ssoguard/pkg/keys"
	"git.sr.ht/~jakintosh/ssoguard/pkg/tokens"
)

type VerifyCmd struct {
	Token string `arg:"" default:"-" help:"Token to verify, or '-' to read it from stdin."`

	stdin io.Reader
}

func (cmd *VerifyCmd) Run(sso *config.SSO, out io.Writer) error {
	if err := sso.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	token, err := cmd.readToken()
	if err != nil {
		return err
	}

	verifier := tokens.NewVerifier(keys.Load(sso.KeyBasePath), sso.URL, sso.Realm)
	claims, err := verifier.Verify(token)
	if err != nil {
		return fmt.Errorf("token rejected: %s", tokens.Context(err))
	}
	if !verifier.CheckIssuer(claims.Issuer()) {
		return fmt.Errorf("token rejected: issuer '%s' is not realm '%s'", claims.Issuer(), verifier.RealmURL())
	}

	userID, err := identity.NewResolver(verifier).ResolveIdentity(token)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}

	fmt.Fprintf(out, "user:    %s\n", userID)
	fmt.Fprintf(out, "subject: %s\n", claims.Subject())
	if exp, ok := claims.Expiration(); ok {
		fmt.Fprintf(out, "expires: %s\n", exp.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func (cmd *VerifyCmd) readToken() (string, error) {
	if cmd.Token != "-" {
		return strings.TrimSpace(cmd.Token), nil
	}
	in := cmd.stdin
	if in == nil {
		in = os.Stdin
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no token given")
	}
	return token, nil
}

type KeysCmd struct{}

func (cmd *KeysCmd) Run(sso *config.SSO, out io.Writer) error {
	if sso.KeyBasePath == "" {
		return errors.New("invalid configuration: missing key base path")
	}
	store := keys.Load(sso.KeyBasePath)
	for _, id := range store.KeyIDs() {
		entry, _ := store.Lookup(id)
		fmt.Fprintf(out, "%s\t%d bits\n", id, entry.PublicKey.N.BitLen())
	}
	fmt.Fprintf(out, "%d keys\n", store.Len())
	return nil
}

type HashPasswordCmd struct {
	Password string `arg:"" help:"Admin password to hash."`
}

func (cmd *HashPasswordCmd) Run(out io.Writer) error {
	hash, err := server.HashPassword(cmd.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(out, hash)
	return nil
}
