package meetup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	appLog "kcevents/internal/log"
)

// DefaultTokenURL is Meetup's OAuth token endpoint.
const DefaultTokenURL = "https://secure.meetup.com/oauth2/access"

// maxErrorBody caps how much of an upstream error body is kept for diagnostics.
const maxErrorBody = 4 << 10

// TokenProvider exchanges long-lived credentials for a short-lived access
// token.
//
// Credential sources, first match wins:
//   - StaticToken: returned as-is, no exchange
//   - RefreshToken: supplied by the caller
//   - Store: refresh token persisted by a previous run
//
// A rotated refresh token in the exchange response is saved to Store before
// AccessToken returns.
type TokenProvider struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	StaticToken  string
	Store        CredentialStore

	// TokenURL defaults to DefaultTokenURL.
	TokenURL   string
	HTTPClient *http.Client
}

// AccessToken returns a bearer token for the event API or an *AuthError.
func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	if p.StaticToken != "" {
		appLog.Info("using static access token; skipping exchange")
		return p.StaticToken, nil
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		return "", &AuthError{Err: fmt.Errorf("%w: client id and client secret are required", ErrMissingCredentials)}
	}

	refresh, source, err := p.refreshToken(ctx)
	if err != nil {
		return "", err
	}

	tokenURL := p.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	conf := &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if p.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}

	appLog.Info("token exchange start", "token_url", redactURL(tokenURL), "refresh_source", source)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return "", exchangeError(err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != refresh {
		if p.Store == nil {
			return "", &AuthError{Err: errors.New("refresh token rotated but no credential store is configured")}
		}
		if err := p.Store.SaveRefreshToken(ctx, tok.RefreshToken); err != nil {
			return "", &AuthError{Err: fmt.Errorf("persist rotated refresh token: %w", err)}
		}
		appLog.Info("refresh token rotated and persisted")
	}

	expiresIn := time.Duration(0)
	if !tok.Expiry.IsZero() {
		expiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	appLog.Info("token exchange success", "expires_in", expiresIn)

	return tok.AccessToken, nil
}

func (p *TokenProvider) refreshToken(ctx context.Context) (token, source string, err error) {
	if p.RefreshToken != "" {
		return p.RefreshToken, "env", nil
	}
	if p.Store == nil {
		return "", "", &AuthError{Err: fmt.Errorf("%w: no refresh token and no credential store", ErrMissingCredentials)}
	}
	token, err = p.Store.LoadRefreshToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNoStoredToken) {
			return "", "", &AuthError{Err: fmt.Errorf("%w: %v", ErrMissingCredentials, err)}
		}
		return "", "", &AuthError{Err: fmt.Errorf("load refresh token: %w", err)}
	}
	return token, "store", nil
}

func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ae := &AuthError{
			Body: truncate(string(re.Body), maxErrorBody),
			Err:  errors.New("token exchange rejected"),
		}
		if re.Response != nil {
			ae.StatusCode = re.Response.StatusCode
		}
		return ae
	}
	return &AuthError{Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
