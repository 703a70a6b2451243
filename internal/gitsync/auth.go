package gitsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	gohttp "net/http"
	"os"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh"

	"github.com/AaroSnid/stm32-driver-sync/internal/config"
)

// auth resolves the repository credentials. A public driver repository has
// none and is cloned anonymously.
func (s *Synchronizer) auth(ctx context.Context) (transport.AuthMethod, error) {
	if s.config.Credentials == nil {
		return nil, nil
	}

	credentials, err := s.config.Credentials.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository credentials: %w", err)
	}

	return authMethod(ctx, &s.tokens, credentials)
}

func authMethod(ctx context.Context, tokens *appTokens, credentials any) (transport.AuthMethod, error) {
	switch c := credentials.(type) {
	case config.SecretBasicAuth:
		return &headerBasicAuth{username: c.Username, password: c.Password, headers: c.Headers}, nil

	case config.SecretGitHubApp:
		token, err := tokens.installationToken(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("github app %d: %w", c.IntegrationID, err)
		}
		// Installation tokens authenticate as basic auth with a fixed user.
		return &http.BasicAuth{Username: "x-access-token", Password: token}, nil

	case config.SecretSSHKey:
		return sshKeyAuth(c)

	case config.TokenSecret:
		return &bearerAuth{source: c}, nil
	}

	return nil, fmt.Errorf("credentials of type %T cannot be used to clone the driver repository", credentials)
}

// appTokens keeps the GitHub App transport of the last installation used, so
// that repeated clones reuse its installation token until it expires.
type appTokens struct {
	mu         sync.Mutex
	app        config.SecretGitHubApp
	privateKey []byte
	tr         *ghinstallation.Transport
}

func (t *appTokens) installationToken(ctx context.Context, app config.SecretGitHubApp) (string, error) {
	privateKey, err := os.ReadFile(app.PrivateKey)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tr == nil || t.app != app || !bytes.Equal(t.privateKey, privateKey) {
		tr, err := ghinstallation.New(gohttp.DefaultTransport, app.IntegrationID, app.InstallationID, privateKey)
		if err != nil {
			return "", err
		}
		t.app, t.privateKey, t.tr = app, privateKey, tr
	}

	return t.tr.Token(ctx)
}

// sshKeyAuth authenticates as the "git" user. The server host key must match
// one of the configured fingerprints.
func sshKeyAuth(key config.SecretSSHKey) (*gitssh.PublicKeys, error) {
	if len(key.Fingerprints) == 0 {
		return nil, errors.New("ssh_key credentials need at least one host key fingerprint")
	}

	var (
		signer ssh.Signer
		err    error
	)
	if key.Passphrase == "" {
		signer, err = ssh.ParsePrivateKey([]byte(key.Key))
	} else {
		signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(key.Key), []byte(key.Passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("ssh_key credentials: %w", err)
	}

	return &gitssh.PublicKeys{
		User:   "git",
		Signer: signer,
		HostKeyCallbackHelper: gitssh.HostKeyCallbackHelper{
			HostKeyCallback: pinnedHostKeys(key.Fingerprints),
		},
	}, nil
}

func pinnedHostKeys(fingerprints []string) ssh.HostKeyCallback {
	pinned := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		pinned[fp] = struct{}{}
	}

	return func(host string, _ net.Addr, key ssh.PublicKey) error {
		fp := ssh.FingerprintSHA256(key)
		if _, ok := pinned[fp]; !ok {
			return fmt.Errorf("host key %s of %s is not pinned in the ssh_key credentials", fp, host)
		}
		return nil
	}
}

// headerBasicAuth is HTTP basic auth plus the extra "Name: value" headers
// some git hosts require.
type headerBasicAuth struct {
	username string
	password string
	headers  []string
}

func (*headerBasicAuth) Name() string {
	return "driversync-basic-auth"
}

func (a *headerBasicAuth) String() string {
	password := "<empty>"
	if a.password != "" {
		password = "<set>"
	}
	return fmt.Sprintf("%s user=%s password=%s headers=%d", a.Name(), a.username, password, len(a.headers))
}

func (a *headerBasicAuth) SetAuth(r *gohttp.Request) {
	r.SetBasicAuth(a.username, a.password)
	for _, h := range a.headers {
		if name, value, ok := strings.Cut(h, ":"); ok {
			r.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}
	}
}

// bearerAuth asks its source for a token on every request.
type bearerAuth struct {
	source config.TokenSecret
}

func (*bearerAuth) Name() string {
	return "driversync-bearer-token"
}

func (a *bearerAuth) String() string {
	return a.Name()
}

func (a *bearerAuth) SetAuth(r *gohttp.Request) {
	token, err := a.source.BearerToken(r.Context())
	if err != nil {
		// Sent without a token; the server rejects the clone.
		return
	}
	r.Header.Set("Authorization", "Bearer "+token)
}
