package gmail

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
	"github.com/JuliaRakitina/ai-email-sorter/pkg/crypto"
)

// tokenStore is the slice of the account repository the provider needs.
type tokenStore interface {
	UpdateToken(ctx context.Context, id int64, tokenEnc string) error
}

// CredentialProvider turns a stored account into an authenticated
// Gateway. Tokens are decrypted, refreshed when expired and re-encrypted
// back to storage so the refresh survives restarts.
type CredentialProvider struct {
	oauth  *oauth2.Config
	box    *crypto.Box
	store  tokenStore
	logger *zap.Logger
}

func NewCredentialProvider(cfg config.GoogleConfig, box *crypto.Box, store tokenStore, logger *zap.Logger) *CredentialProvider {
	return &CredentialProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				gmailapi.GmailModifyScope,
				"openid", "email", "profile",
			},
		},
		box:    box,
		store:  store,
		logger: logger,
	}
}

// OAuthConfig exposes the underlying config for the login flow.
func (p *CredentialProvider) OAuthConfig() *oauth2.Config { return p.oauth }

// EncryptToken serializes and seals a fresh token for storage.
func (p *CredentialProvider) EncryptToken(tok *oauth2.Token) (string, error) {
	raw, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("gmail: marshal token: %w", err)
	}
	return p.box.EncryptString(string(raw))
}

// Resolve builds an authenticated Gateway for the account. A token
// refreshed on the way in is persisted before the gateway is returned.
func (p *CredentialProvider) Resolve(ctx context.Context, account *model.Account) (Gateway, error) {
	raw, err := p.box.DecryptString(account.TokenEnc)
	if err != nil {
		return nil, fmt.Errorf("gmail: decrypt token for account %d: %w", account.ID, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("gmail: decode token for account %d: %w", account.ID, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("gmail: account %d has no usable credentials", account.ID)
	}

	ts := p.oauth.TokenSource(ctx, &tok)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("gmail: refresh token for account %d: %w", account.ID, err)
	}

	if fresh.AccessToken != tok.AccessToken {
		enc, err := p.EncryptToken(fresh)
		if err != nil {
			return nil, err
		}
		if err := p.store.UpdateToken(ctx, account.ID, enc); err != nil {
			// Gateway still works with the in-memory token; the next
			// resolve will refresh again.
			p.logger.Warn("failed to persist refreshed token",
				zap.Int64("account_id", account.ID),
				zap.Error(err))
		}
	}

	return NewClient(ctx, oauth2.ReuseTokenSource(fresh, ts))
}
