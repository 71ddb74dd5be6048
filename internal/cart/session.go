package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

const sessionKeyPrefix = "pos:session:"

var (
	// ErrTabBound is returned when editing a cart restored from an open tab.
	ErrTabBound = common.NewCodedError("TAB_BOUND", http.StatusConflict, "cart belongs to an open tab; clear the session to start a new order")
	// ErrInvalidSession is returned for a malformed session id.
	ErrInvalidSession = common.NewCodedError("INVALID_SESSION", http.StatusBadRequest, "invalid session id")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Session is the cart state of one cashier station. TabID is set while the
// cart holds a restored open tab awaiting payment.
type Session struct {
	ID        string    `json:"id"`
	Cart      *Cart     `json:"cart"`
	TabID     string    `json:"tabId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Bind attaches the session to an open tab and replaces its cart.
func (s *Session) Bind(tabID string, c *Cart) {
	s.TabID = tabID
	s.Cart = c
}

// Reset empties the cart and releases any tab reference.
func (s *Session) Reset() {
	s.TabID = ""
	s.Cart = New()
}

// SessionStore keeps sessions in Redis with a sliding TTL.
type SessionStore struct {
	R   *redis.Client
	TTL time.Duration
	Now func() time.Time
}

func (s *SessionStore) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 12 * time.Hour
	}
	return s.TTL
}

func (s *SessionStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Load returns the stored session or a fresh empty one.
func (s *SessionStore) Load(ctx context.Context, id string) (*Session, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("cart: session store not configured")
	}
	if !sessionIDPattern.MatchString(id) {
		return nil, ErrInvalidSession
	}
	data, err := s.R.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &Session{ID: id, Cart: New()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.ID = id
	if sess.Cart == nil {
		sess.Cart = New()
	}
	return &sess, nil
}

// Save writes the session and renews its TTL.
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	if s == nil || s.R == nil {
		return errors.New("cart: session store not configured")
	}
	if sess == nil || !sessionIDPattern.MatchString(sess.ID) {
		return ErrInvalidSession
	}
	if sess.Cart == nil {
		sess.Cart = New()
	}
	sess.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.R.Set(ctx, sessionKey(sess.ID), data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete drops a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.R == nil {
		return errors.New("cart: session store not configured")
	}
	return s.R.Del(ctx, sessionKey(id)).Err()
}
