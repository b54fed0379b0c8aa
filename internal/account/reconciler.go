package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/openhub-dev/openhub/internal/provider"
	"github.com/openhub-dev/openhub/internal/shared"
	"golang.org/x/oauth2"
)

// Events is notified when a LinkedAccount comes into existence. The jobs
// integration consumes this to kick off the first full sync.
type Events interface {
	AccountLinked(ctx context.Context, accountID string) error
}

// Reconciler resolves an inbound OAuth profile against the local identity
// records: it either attaches to the authenticated user, adopts an existing
// linked account, or mints a brand new user.
type Reconciler struct {
	store  *Store
	events Events
	logger *slog.Logger
}

func NewReconciler(store *Store, events Events, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		events: events,
		logger: logger,
	}
}

// Reconcile runs the identity state machine for one OAuth completion.
// currentUserID is empty for anonymous callers.
func (r *Reconciler) Reconcile(ctx context.Context, providerName string, profile *provider.Profile, token *oauth2.Token, currentUserID string) (*User, error) {
	acct, err := r.store.GetAccount(ctx, providerName, profile.RemoteID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if acct == nil {
		return r.link(ctx, providerName, profile, token, currentUserID)
	}
	return r.adopt(ctx, acct, profile, token, currentUserID)
}

// link handles a (provider, remote id) pair never seen before: attach to the
// authenticated user if there is one, otherwise create a user from the
// profile.
func (r *Reconciler) link(ctx context.Context, providerName string, profile *provider.Profile, token *oauth2.Token, currentUserID string) (*User, error) {
	var owner *User
	var err error

	if currentUserID != "" {
		owner, err = r.store.GetUserByID(ctx, currentUserID)
		if err != nil {
			return nil, err
		}
	} else {
		owner, err = r.createUser(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	acct := &LinkedAccount{
		Provider: providerName,
		RemoteID: profile.RemoteID,
		UserID:   owner.ID,
		Login:    profile.Login,
	}
	applyToken(acct, token)

	if err := r.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	r.logger.Info("linked account created",
		"provider", providerName, "login", profile.Login, "user_id", owner.ID)

	// The initial sync is best-effort; a dead queue must not fail the login.
	if r.events != nil {
		if err := r.events.AccountLinked(ctx, acct.ID); err != nil {
			r.logger.Error("failed to emit account linked event", "error", err, "account_id", acct.ID)
		}
	}

	return owner, nil
}

func (r *Reconciler) createUser(ctx context.Context, profile *provider.Profile) (*User, error) {
	username := profile.Login
	taken, err := r.store.UsernameTaken(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		// Disambiguate instead of failing or clobbering the existing user.
		username = profile.Login + "_" + shared.NewToken(6)
	}

	first, last := SplitName(profile.Name)
	owner := &User{
		Username:  username,
		Email:     profile.Email,
		FirstName: first,
		LastName:  last,
		AvatarURL: profile.AvatarURL,
	}
	if err := r.store.CreateUser(ctx, owner); err != nil {
		return nil, err
	}
	return owner, nil
}

// adopt handles a known linked account: token rotation always takes effect,
// and an authenticated caller consolidates ownership onto themselves.
func (r *Reconciler) adopt(ctx context.Context, acct *LinkedAccount, profile *provider.Profile, token *oauth2.Token, currentUserID string) (*User, error) {
	applyToken(acct, token)

	if currentUserID != "" && currentUserID != acct.UserID {
		r.logger.Info("reassigning linked account",
			"provider", acct.Provider, "from", acct.UserID, "to", currentUserID)
		acct.UserID = currentUserID
	}
	if profile.Login != "" && profile.Login != acct.Login {
		acct.Login = profile.Login
	}

	if err := r.store.SaveAccount(ctx, acct); err != nil {
		return nil, err
	}

	return r.store.GetUserByID(ctx, acct.UserID)
}

func applyToken(acct *LinkedAccount, token *oauth2.Token) {
	acct.AccessToken = token.AccessToken
	acct.RefreshToken = token.RefreshToken
	acct.TokenType = token.TokenType
	if token.Expiry.IsZero() {
		acct.ExpiresAt = nil
	} else {
		expiry := token.Expiry
		acct.ExpiresAt = &expiry
	}
}

// SplitName splits a display name into first and last on the first space
// only. A name without a space yields an empty last name.
func SplitName(name string) (first, last string) {
	first, last, _ = strings.Cut(name, " ")
	return first, last
}
