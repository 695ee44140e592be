package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"
)

type fakeContext struct {
	tele.Context
	sender  *tele.User
	replies []string
}

func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Chat() *tele.Chat   { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Text() string       { return "/credit 1 10" }

func (f *fakeContext) Reply(what interface{}, opts ...interface{}) error {
	f.replies = append(f.replies, fmt.Sprint(what))
	return nil
}

type adminSet struct {
	ids map[int64]bool
	err error
}

func (a adminSet) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return a.ids[userID], a.err
}

// TestAdminMiddlewareProperty: the wrapped handler runs exactly when the
// sender is an admin, and non-admins get one refusal.
func TestAdminMiddlewareProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.Int64Range(1, 1_000_000_000), 1, 10, func(id int64) int64 { return id }).
			Draw(t, "adminIDs")
		admins := adminSet{ids: make(map[int64]bool)}
		for _, id := range ids {
			admins.ids[id] = true
		}

		userID := rapid.OneOf(rapid.SampledFrom(ids), rapid.Int64Range(1, 1_000_000_000)).Draw(t, "userID")

		called := false
		h := AdminMiddleware(admins)(func(c tele.Context) error {
			called = true
			return nil
		})

		c := &fakeContext{sender: &tele.User{ID: userID}}
		if err := h(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if called != admins.ids[userID] {
			t.Fatalf("user %d admin=%v but handler called=%v", userID, admins.ids[userID], called)
		}
		if !called && len(c.replies) != 1 {
			t.Fatalf("non-admin got %d replies", len(c.replies))
		}
	})
}

func TestAdminMiddleware_CheckFails(t *testing.T) {
	h := AdminMiddleware(adminSet{err: errors.New("db down")})(func(c tele.Context) error {
		t.Fatal("handler must not run")
		return nil
	})

	c := &fakeContext{sender: &tele.User{ID: 1}}
	require.NoError(t, h(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "Something went wrong")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware()(func(c tele.Context) error {
		panic("boom")
	})

	c := &fakeContext{sender: &tele.User{ID: 1}}
	require.NoError(t, h(c))
	assert.Equal(t, []string{"❌ Something went wrong, please try again later"}, c.replies)
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	want := errors.New("handler error")
	h := LoggingMiddleware()(func(c tele.Context) error { return want })

	c := &fakeContext{sender: &tele.User{ID: 1, Username: "abebe"}}
	assert.ErrorIs(t, h(c), want)
}

func TestCommandOf(t *testing.T) {
	assert.Equal(t, "/deposit", commandOf("/deposit 100 telebirr"))
	assert.Equal(t, "/top", commandOf("/top@ZebiBingoBot"))
	assert.Equal(t, "text", commandOf("ABC234"))
	assert.Equal(t, "text", commandOf(""))
}
