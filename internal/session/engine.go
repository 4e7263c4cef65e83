package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/store"
	"go.uber.org/zap"
)

// Store keys owned by the engine.
const (
	KeyUser  = "user"
	KeyToken = "jwt_token"
)

var (
	ErrEmptyCredentials     = errors.New("username and password are required")
	ErrAlreadyAuthenticated = errors.New("already logged in")
	ErrUnauthenticated      = errors.New("not logged in")
	ErrForbidden            = errors.New("not allowed for this role")
)

// Authenticator exchanges credentials for an identity and token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (domain.Identity, string, error)
}

// CartClearer is the part of the cart engine a logout needs.
type CartClearer interface {
	Clear(ctx context.Context)
}

// Engine tracks who is using the device. It is either anonymous or holds
// exactly one identity.
type Engine struct {
	mu       sync.RWMutex
	store    store.Store
	auth     Authenticator
	cart     CartClearer
	log      *zap.Logger
	identity *domain.Identity
}

// NewEngine restores a persisted session. The stored identity is trusted
// as-is; the token is not re-validated.
func NewEngine(ctx context.Context, st store.Store, auth Authenticator, cart CartClearer, log *zap.Logger) *Engine {
	e := &Engine{store: st, auth: auth, cart: cart, log: log}
	e.identity = e.restore(ctx)
	return e
}

func (e *Engine) restore(ctx context.Context) *domain.Identity {
	if _, err := e.store.Get(ctx, KeyToken); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("failed to read session token", zap.Error(err))
		}
		return nil
	}

	var id domain.Identity
	if err := store.GetJSON(ctx, e.store, KeyUser, &id); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("discarding unreadable session", zap.Error(err))
		}
		return nil
	}
	if id.Role != domain.RoleUser && id.Role != domain.RoleAdmin {
		e.log.Warn("discarding session with unknown role", zap.String("role", id.Role.String()))
		return nil
	}

	e.log.Info("session restored", zap.String("username", id.Username), zap.Stringer("role", id.Role))
	return &id
}

func (e *Engine) Login(ctx context.Context, username, password string) (domain.Identity, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return domain.Identity{}, ErrEmptyCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.identity != nil {
		return domain.Identity{}, ErrAlreadyAuthenticated
	}

	id, token, err := e.auth.Login(ctx, username, password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("login failed: %w", err)
	}

	if err := e.store.Set(ctx, KeyToken, []byte(token)); err != nil {
		e.log.Error("failed to persist session token", zap.Error(err))
	}
	if err := store.SetJSON(ctx, e.store, KeyUser, id); err != nil {
		e.log.Error("failed to persist session", zap.Error(err))
	}

	e.identity = &id
	e.log.Info("logged in", zap.String("username", id.Username), zap.Stringer("role", id.Role))
	return id, nil
}

// Logout forgets the identity and clears the cart and budget so the next
// user of the device starts fresh.
func (e *Engine) Logout(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Remove(ctx, KeyToken); err != nil {
		e.log.Error("failed to remove session token", zap.Error(err))
	}
	if err := e.store.Remove(ctx, KeyUser); err != nil {
		e.log.Error("failed to remove session", zap.Error(err))
	}
	if e.identity != nil {
		e.log.Info("logged out", zap.String("username", e.identity.Username))
	}
	e.identity = nil

	e.cart.Clear(ctx)
}

func (e *Engine) Current() (domain.Identity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.identity == nil {
		return domain.Identity{}, false
	}
	return *e.identity, true
}

func (e *Engine) IsAuthenticated() bool {
	_, ok := e.Current()
	return ok
}

// Authorize checks that the current identity may use capability c.
func (e *Engine) Authorize(c Capability) (domain.Identity, error) {
	id, ok := e.Current()
	if !ok {
		return domain.Identity{}, ErrUnauthenticated
	}
	if !c.AllowedFor(id.Role) {
		return domain.Identity{}, ErrForbidden
	}
	return id, nil
}
