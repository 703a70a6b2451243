package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/swaggest/jsonschema-go"
)

// knownHostFingerprints pin the SSH host keys of the common git hosts for
// ssh_key credentials that list none.
var knownHostFingerprints = []string{
	"SHA256:uNiVztksCsDhcc0u9e8BujQXVUpKZIDTMczCvj3tD2s", // github.com
	"SHA256:p2QAMXNIC1TJYWeIOttrVc98/R1BUFWu3/LiyKgUfQM", // github.com
	"SHA256:+DiY3wvvV6TuJJhbpZisF/zLDA0zPMSvHdkr4UvCOqU", // github.com
	"SHA256:zzXQOXSRBEiUtuE8AikJYKwbHaxvSc0ojez9YXaGp1A", // bitbucket.org
	"SHA256:ohD8VZEXGWo6Ez8GSEJQ9WpafgLFsOfLOtGGQCQo6Og", // dev.azure.com
}

// Secret holds the credentials for a private driver repository, referenced by
// name from repository.credentials:
//
//	repository:
//	  repo: https://github.com/acme/stm32-drivers.git
//	  credentials: drivers
//	secrets:
//	  drivers:
//	    type: token_auth
//	    token: ${DRIVERS_TOKEN}
//
// ${VAR} references in string values are expanded from the environment when
// the clone starts. The type key selects the other keys:
//
//   - basic_auth: username, password and optional headers ("Name: value").
//   - token_auth: token, sent as a bearer token.
//   - ssh_key: key (PEM), optional passphrase and fingerprints. Without
//     fingerprints the host keys of github.com, bitbucket.org and
//     dev.azure.com are accepted.
//   - github_app_auth: integration_id, installation_id and private_key (path
//     to the PEM file).
type Secret struct {
	Name  string         `json:"-"`
	Value map[string]any `json:"-"`
}

func (s *Secret) Ref() *SecretRef {
	return &SecretRef{Name: s.Name, value: s}
}

func (*Secret) PrepareJSONSchema(schema *jsonschema.Schema) error {
	schema.Type = nil
	schema.AddType(jsonschema.Object)
	return nil
}

func (s *Secret) MarshalYAML() (any, error) {
	if len(s.Value) == 0 {
		return map[string]any{}, nil
	}
	return s.Value, nil
}

func (s *Secret) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}

	return json.Marshal(v)
}

func (s *Secret) UnmarshalYAML(bs []byte) error {
	if err := yaml.Unmarshal(bs, &s.Value); err != nil {
		return fmt.Errorf("expected mapping node: %w", err)
	}
	return nil
}

func (s *Secret) UnmarshalJSON(bs []byte) error {
	return json.Unmarshal(bs, &s.Value)
}

func (s *Secret) expanded() map[string]any {
	m := make(map[string]any, len(s.Value))
	for k, v := range s.Value {
		if str, ok := v.(string); ok {
			m[k] = os.ExpandEnv(str)
			continue
		}
		m[k] = v
	}
	return m
}

// Typed decodes the secret into SecretBasicAuth, SecretTokenAuth,
// SecretSSHKey or SecretGitHubApp according to its type key.
func (s *Secret) Typed(context.Context) (any, error) {
	m := s.expanded()
	if len(m) == 0 {
		return nil, fmt.Errorf("secret %q has no value", s.Name)
	}

	switch kind := m["type"]; kind {
	case "basic_auth":
		var v SecretBasicAuth
		if err := decode(m, &v); err != nil {
			return nil, fmt.Errorf("secret %q: %w", s.Name, err)
		}
		return v, nil

	case "token_auth":
		var v SecretTokenAuth
		if err := decode(m, &v); err != nil {
			return nil, fmt.Errorf("secret %q: %w", s.Name, err)
		}
		if v.Token == "" {
			return nil, fmt.Errorf("secret %q: token_auth needs a token", s.Name)
		}
		return v, nil

	case "ssh_key":
		var v SecretSSHKey
		if err := decode(m, &v); err != nil {
			return nil, fmt.Errorf("secret %q: %w", s.Name, err)
		}
		if v.Key == "" {
			return nil, fmt.Errorf("secret %q: ssh_key needs a key", s.Name)
		}
		if len(v.Fingerprints) == 0 {
			v.Fingerprints = knownHostFingerprints
		}
		return v, nil

	case "github_app_auth":
		var v SecretGitHubApp
		if err := decode(m, &v); err != nil {
			return nil, fmt.Errorf("secret %q: %w", s.Name, err)
		}
		if v.IntegrationID == 0 || v.InstallationID == 0 || v.PrivateKey == "" {
			return nil, fmt.Errorf("secret %q: github_app_auth needs integration_id, installation_id and private_key", s.Name)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("secret %q: unknown type %v", s.Name, kind)
	}
}

type SecretBasicAuth struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Headers  []string `json:"headers,omitempty"`
}

type SecretTokenAuth struct {
	Token string `json:"token"`
}

type SecretSSHKey struct {
	Key          string   `json:"key"` // PEM
	Passphrase   string   `json:"passphrase,omitempty"`
	Fingerprints []string `json:"fingerprints,omitempty"` // SHA256 host key fingerprints
}

type SecretGitHubApp struct {
	IntegrationID  int64  `json:"integration_id"`
	InstallationID int64  `json:"installation_id"`
	PrivateKey     string `json:"private_key"` // path to the PEM file
}

// TokenSecret is implemented by credentials that produce a bearer token.
type TokenSecret interface {
	BearerToken(ctx context.Context) (string, error)
}

func (s SecretTokenAuth) BearerToken(context.Context) (string, error) {
	return s.Token, nil
}

// decode maps secret values onto the credential structs using their json tags.
// Numbers written as strings (integration_id: "12") are accepted.
func decode(input map[string]any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           output,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
