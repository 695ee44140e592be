// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/pkg/apperr"
	"bingo-bot/internal/pkg/lock"
)

const (
	msgBusy     = "⏳ Your previous request is still running, please try again"
	msgInternal = "❌ Something went wrong, please try again later"
	divider     = "━━━━━━━━━━━━━━━"
)

// replyError answers with the reason carried by err. Unclassified errors are
// logged and answered generically.
func replyError(c tele.Context, err error) error {
	if errors.Is(err, lock.ErrLockTimeout) {
		return c.Reply(msgBusy)
	}

	appErr := apperr.As(err)
	if appErr.Kind == apperr.KindInternal {
		event := log.Error().Err(err).Str("command", c.Text())
		if sender := c.Sender(); sender != nil {
			event = event.Int64("user_id", sender.ID)
		}
		event.Msg("Command failed")
		return c.Reply(msgInternal)
	}

	return c.Reply("❌ " + capitalize(appErr.Message))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// parseInt64Args parses the first n arguments as integers. usage is replied
// when an argument is missing or malformed.
func parseInt64Args(args []string, n int, usage string) ([]int64, error) {
	if len(args) < n {
		return nil, errors.New(usage)
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil {
			return nil, errors.New(usage)
		}
		out[i] = v
	}
	return out, nil
}

func displayName(username string, userID int64) string {
	if username == "" {
		return fmt.Sprintf("User%d", userID)
	}
	return "@" + username
}

func rankLabel(i int) string {
	medals := []string{"🥇", "🥈", "🥉"}
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}

// PendingSignup is what a user tells the bot before registering.
type PendingSignup struct {
	ReferrerID *int64
	Phone      string
	Name       string
	seen       time.Time
}

// PendingSignups remembers referral links and shared contacts of users who
// have not registered yet. Entries expire after ttl.
type PendingSignups struct {
	mu      sync.Mutex
	entries map[int64]*PendingSignup
	ttl     time.Duration
	now     func() time.Time
}

// NewPendingSignups creates an empty cache.
func NewPendingSignups(ttl time.Duration) *PendingSignups {
	return &PendingSignups{
		entries: make(map[int64]*PendingSignup),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (p *PendingSignups) entry(userID int64) *PendingSignup {
	e, ok := p.entries[userID]
	if !ok || p.now().Sub(e.seen) > p.ttl {
		e = &PendingSignup{}
		p.entries[userID] = e
	}
	e.seen = p.now()
	return e
}

// SetReferrer records who invited userID. A user cannot refer themselves.
func (p *PendingSignups) SetReferrer(userID, referrerID int64) {
	if userID == referrerID {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entry(userID).ReferrerID = &referrerID
}

// SetContact records the phone number and name userID shared.
func (p *PendingSignups) SetContact(userID int64, phone, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.entry(userID)
	e.Phone = phone
	e.Name = name
}

// Peek returns what is known about userID without forgetting it.
func (p *PendingSignups) Peek(userID int64) PendingSignup {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[userID]
	if !ok || p.now().Sub(e.seen) > p.ttl {
		return PendingSignup{}
	}
	return *e
}

// Forget drops the entry of userID once it has been used.
func (p *PendingSignups) Forget(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, userID)
}

// Sweep drops expired entries.
func (p *PendingSignups) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, e := range p.entries {
		if p.now().Sub(e.seen) > p.ttl {
			delete(p.entries, id)
			removed++
		}
	}
	return removed
}

// ParseReferralPayload extracts the referrer id from a "ref_<id>" start
// payload.
func ParseReferralPayload(payload string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(payload), "ref_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
