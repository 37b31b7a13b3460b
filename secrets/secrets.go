// Package secrets loads the OAuth client identity downloaded from the Google
// Cloud console (client_secrets.json).
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"gdrive-transfer/errs"
)

// Identity is the application identity used for every OAuth exchange.
type Identity struct {
	ClientID     string
	ClientSecret string
	ProjectID    string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
}

// record mirrors one entry of the client secrets file.
type record struct {
	ClientID     string   `json:"client_id" validate:"required"`
	ClientSecret string   `json:"client_secret" validate:"required"`
	ProjectID    string   `json:"project_id" validate:"required"`
	AuthURI      string   `json:"auth_uri" validate:"omitempty,url"`
	TokenURI     string   `json:"token_uri" validate:"omitempty,url"`
	RedirectURIs []string `json:"redirect_uris"`
}

type file struct {
	Installed *record `json:"installed"`
	Web       *record `json:"web"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so messages match the file contents.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// Load reads the client secrets file at path. Both the "installed" and the
// "web" application shapes are accepted.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigError{Path: path, Err: err}
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: fmt.Errorf("decoding client secrets: %w", err)}
	}

	rec := f.Installed
	if rec == nil {
		rec = f.Web
	}
	if rec == nil {
		return nil, &errs.ConfigError{Path: path, Err: errors.New(`missing "installed" application record`)}
	}

	if err := validate.Struct(rec); err != nil {
		return nil, &errs.ConfigError{Path: path, Err: describe(err)}
	}

	id := &Identity{
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
		ProjectID:    rec.ProjectID,
		AuthURL:      rec.AuthURI,
		TokenURL:     rec.TokenURI,
	}
	if len(rec.RedirectURIs) > 0 {
		id.RedirectURI = rec.RedirectURIs[0]
	}
	if id.AuthURL == "" {
		id.AuthURL = google.Endpoint.AuthURL
	}
	if id.TokenURL == "" {
		id.TokenURL = google.Endpoint.TokenURL
	}

	return id, nil
}

// describe turns validator output into a short list of offending fields.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return errors.New(strings.Join(parts, "; "))
}

// WithEndpoints returns a copy of id with the authorization and token
// endpoints replaced. Empty arguments keep the current value.
func (id Identity) WithEndpoints(authURL, tokenURL string) Identity {
	if authURL != "" {
		id.AuthURL = authURL
	}
	if tokenURL != "" {
		id.TokenURL = tokenURL
	}
	return id
}

// OAuthConfig builds the oauth2 configuration for the given scopes and
// redirect URL. Client credentials are sent in the request body, which is
// what Google's installed-app token endpoint expects.
func (id Identity) OAuthConfig(scopes []string, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     id.ClientID,
		ClientSecret: id.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       append([]string(nil), scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:   id.AuthURL,
			TokenURL:  id.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
