package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/JuliaRakitina/ai-email-sorter/internal/config"
	"github.com/JuliaRakitina/ai-email-sorter/internal/gmail"
	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
)

type userStore interface {
	GetOrCreate(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

type accountAdminStore interface {
	Upsert(ctx context.Context, userID int64, email, tokenEnc string) (*model.Account, error)
	FindByID(ctx context.Context, id int64) (*model.Account, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Account, error)
	UpdateWatch(ctx context.Context, id int64, historyID string, expiration *time.Time) error
	DeleteCascade(ctx context.Context, id int64) error
}

type defaultCategoryStore interface {
	EnsureDefaultCategory(ctx context.Context, userID, accountID int64) (*model.Category, error)
}

// AccountService manages connected mailboxes: OAuth connect, watch
// registration and disconnect.
type AccountService struct {
	users      userStore
	accounts   accountAdminStore
	categories defaultCategoryStore
	provider   *gmail.CredentialProvider
	pubsub     config.PubSubConfig
	logger     *zap.Logger
}

func NewAccountService(
	users userStore,
	accounts accountAdminStore,
	categories defaultCategoryStore,
	provider *gmail.CredentialProvider,
	pubsub config.PubSubConfig,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		users:      users,
		accounts:   accounts,
		categories: categories,
		provider:   provider,
		pubsub:     pubsub,
		logger:     logger,
	}
}

// Connect stores an OAuth token as a connected account. userID 0 means a
// login: the mailbox owner becomes (or already is) the user. The default
// category is created and push notifications are registered; a watch
// failure does not fail the connect.
func (s *AccountService) Connect(ctx context.Context, userID int64, tok *oauth2.Token) (*model.User, *model.Account, error) {
	enc, err := s.provider.EncryptToken(tok)
	if err != nil {
		return nil, nil, err
	}

	// The mailbox address comes from the profile, not from the client.
	gw, err := gmail.NewClient(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, nil, err
	}
	profile, err := gw.Profile(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read profile: %w", err)
	}

	var user *model.User
	if userID == 0 {
		user, err = s.users.GetOrCreate(ctx, profile.EmailAddress)
	} else {
		user, err = s.users.FindByID(ctx, userID)
	}
	if err != nil {
		return nil, nil, err
	}

	account, err := s.accounts.Upsert(ctx, user.ID, profile.EmailAddress, enc)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.categories.EnsureDefaultCategory(ctx, user.ID, account.ID); err != nil {
		return nil, nil, err
	}

	if err := s.RegisterWatch(ctx, account.ID); err != nil {
		s.logger.Warn("watch registration failed, push sync disabled for account",
			zap.Int64("account_id", account.ID), zap.Error(err))
	}
	return user, account, nil
}

// RegisterWatch subscribes the mailbox to Pub/Sub pushes and seeds the
// sync cursor from the watch response.
func (s *AccountService) RegisterWatch(ctx context.Context, accountID int64) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	gw, err := s.provider.Resolve(ctx, account)
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("projects/%s/topics/%s", s.pubsub.ProjectID, s.pubsub.Topic)
	watch, err := gw.RegisterWatch(ctx, topic)
	if err != nil {
		return err
	}
	return s.accounts.UpdateWatch(ctx, account.ID, watch.HistoryID, watch.Expiration)
}

func (s *AccountService) ListAccounts(ctx context.Context, userID int64) ([]model.Account, error) {
	return s.accounts.ListByUser(ctx, userID)
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.accounts.FindByID(ctx, id)
}

// Disconnect removes the account and everything ingested from it.
func (s *AccountService) Disconnect(ctx context.Context, accountID int64) error {
	return s.accounts.DeleteCascade(ctx, accountID)
}
