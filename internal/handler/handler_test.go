package handler

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/pkg/lock"
	"bingo-bot/internal/service"
)

// fakeContext records replies. Methods a test does not expect to be called
// panic through the nil embedded interface.
type fakeContext struct {
	tele.Context
	sender  *tele.User
	chat    *tele.Chat
	message *tele.Message
	args    []string
	replies []string
}

func newFakeContext(userID int64, text string, args ...string) *fakeContext {
	return &fakeContext{
		sender:  &tele.User{ID: userID, FirstName: "Abebe"},
		chat:    &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		message: &tele.Message{Text: text},
		args:    args,
	}
}

func (f *fakeContext) Sender() *tele.User     { return f.sender }
func (f *fakeContext) Chat() *tele.Chat       { return f.chat }
func (f *fakeContext) Message() *tele.Message { return f.message }
func (f *fakeContext) Text() string           { return f.message.Text }
func (f *fakeContext) Args() []string         { return f.args }

func (f *fakeContext) Reply(what interface{}, opts ...interface{}) error {
	f.replies = append(f.replies, fmt.Sprint(what))
	return nil
}

type fakeMessenger struct {
	fail map[int64]bool
	got  []int64
}

func (m *fakeMessenger) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	u := to.(*tele.User)
	if m.fail[u.ID] {
		return nil, errors.New("bot was blocked by the user")
	}
	m.got = append(m.got, u.ID)
	return &tele.Message{}, nil
}

func TestParseReferralPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    int64
		ok      bool
	}{
		{"ref_42", 42, true},
		{"  ref_7 ", 7, true},
		{"ref_", 0, false},
		{"ref_abc", 0, false},
		{"ref_-3", 0, false},
		{"42", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseReferralPayload(tt.payload)
		assert.Equal(t, tt.ok, ok, "payload %q", tt.payload)
		assert.Equal(t, tt.want, got, "payload %q", tt.payload)
	}
}

func TestPendingSignups(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewPendingSignups(time.Hour)
	p.now = func() time.Time { return now }

	p.SetReferrer(10, 10)
	assert.Nil(t, p.Peek(10).ReferrerID, "self referral ignored")

	p.SetReferrer(10, 3)
	p.SetContact(10, "+251911000000", "Abebe Kebede")
	got := p.Peek(10)
	require.NotNil(t, got.ReferrerID)
	assert.Equal(t, int64(3), *got.ReferrerID)
	assert.Equal(t, "+251911000000", got.Phone)
	assert.Equal(t, "Abebe Kebede", got.Name)
	assert.Equal(t, got, p.Peek(10), "peek keeps the entry")

	p.Forget(10)
	assert.Equal(t, PendingSignup{}, p.Peek(10))

	p.SetReferrer(11, 3)
	now = now.Add(2 * time.Hour)
	assert.Nil(t, p.Peek(11).ReferrerID, "expired entry dropped")

	p.SetReferrer(12, 3)
	now = now.Add(2 * time.Hour)
	p.SetContact(12, "+251922000000", "Sara")
	got = p.Peek(12)
	assert.Nil(t, got.ReferrerID, "expired referrer not carried into a fresh entry")
	assert.Equal(t, "Sara", got.Name)

	p.SetReferrer(13, 3)
	p.SetReferrer(14, 3)
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 2, p.Sweep())
}

func TestLaunchURL(t *testing.T) {
	link, err := LaunchURL("https://bingo.example.com/app?lang=am", "a.b.c")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", u.Query().Get("token"))
	assert.Equal(t, "am", u.Query().Get("lang"))
	assert.Equal(t, "/app", u.Path)
}

func TestParseInt64Args(t *testing.T) {
	got, err := parseInt64Args([]string{"12", "20", "extra"}, 2, "usage")
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 20}, got)

	_, err = parseInt64Args([]string{"12"}, 2, "usage")
	assert.EqualError(t, err, "usage")

	_, err = parseInt64Args([]string{"12", "x"}, 2, "usage")
	assert.EqualError(t, err, "usage")
}

func TestReplyError(t *testing.T) {
	c := newFakeContext(1, "/withdraw 100")

	require.NoError(t, replyError(c, service.ErrInsufficientFunds))
	require.NoError(t, replyError(c, fmt.Errorf("join: %w", service.ErrNotJoinable)))
	require.NoError(t, replyError(c, lock.ErrLockTimeout))
	require.NoError(t, replyError(c, errors.New("connection refused")))

	assert.Equal(t, []string{
		"❌ Insufficient balance",
		"❌ Game is not accepting players",
		msgBusy,
		msgInternal,
	}, c.replies)
}

func TestBroadcast(t *testing.T) {
	m := &fakeMessenger{fail: map[int64]bool{2: true}}

	sent := broadcast(m, []int64{1, 2, 3}, "hello", 0)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, m.got)
}

func TestUsageReplies(t *testing.T) {
	locks := lock.NewUserLock(time.Second)
	games := &GameHandler{}
	admin := NewAdminHandler(nil, nil, locks)
	payments := NewPaymentHandler(nil, []string{"telebirr", "cbe"}, locks)

	tests := []struct {
		name    string
		handle  tele.HandlerFunc
		args    []string
		contain string
	}{
		{"newgame without bet", games.HandleNewGame, nil, "/newgame <bet>"},
		{"startgame with bad id", games.HandleStartGame, []string{"x", "10"}, "/startgame"},
		{"endgame without id", games.HandleEndGame, nil, "/endgame"},
		{"credit missing amount", admin.HandleCredit, []string{"5"}, "/credit"},
		{"debit non-positive", admin.HandleDebit, []string{"5", "0"}, "greater than 0"},
		{"promote bad id", admin.HandlePromote, []string{"bob"}, "/promote"},
		{"deposit missing method", payments.HandleDeposit, []string{"100"}, "telebirr, cbe"},
		{"withdraw bad amount", payments.HandleWithdraw, []string{"lots"}, "/withdraw"},
		{"verify bad id", payments.HandleVerify, []string{"123"}, "/verify"},
		{"reject without id", payments.HandleReject, nil, "/reject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeContext(1, "/cmd", tt.args...)
			require.NoError(t, tt.handle(c))
			require.Len(t, c.replies, 1)
			assert.Contains(t, c.replies[0], tt.contain)
		})
	}
}

func TestHandleText_IgnoresNonCodes(t *testing.T) {
	payments := NewPaymentHandler(nil, nil, lock.NewUserLock(time.Second))

	c := newFakeContext(1, "hello there")
	require.NoError(t, payments.HandleText(c))
	assert.Empty(t, c.replies)

	group := newFakeContext(1, "ABC234")
	group.chat = &tele.Chat{ID: -100, Type: tele.ChatGroup}
	require.NoError(t, payments.HandleText(group))
	assert.Empty(t, group.replies)
}

func TestHandleContact_RejectsForeignContact(t *testing.T) {
	accounts := NewAccountHandler(nil, nil, nil, NewPendingSignups(time.Hour), lock.NewUserLock(time.Second))

	c := newFakeContext(1, "")
	c.message.Contact = &tele.Contact{UserID: 2, PhoneNumber: "+251911000000", FirstName: "Other"}
	require.NoError(t, accounts.HandleContact(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "your own contact")

	assert.Equal(t, PendingSignup{}, accounts.pending.Peek(1))
}

func TestHandleRegister_FailureKeepsSignup(t *testing.T) {
	pending := NewPendingSignups(time.Hour)
	pending.SetReferrer(1, 3)
	pending.SetContact(1, "+251911000000", "Abebe")
	accounts := NewAccountHandler(nil, nil, nil, pending, lock.NewUserLock(time.Second))

	c := newFakeContext(1, "/register ab", "ab")
	require.NoError(t, accounts.HandleRegister(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "Username must be 3-20 characters")

	// a retry still carries the referrer and the shared contact
	got := pending.Peek(1)
	require.NotNil(t, got.ReferrerID)
	assert.Equal(t, int64(3), *got.ReferrerID)
	assert.Equal(t, "+251911000000", got.Phone)
}

func TestHandleRegister_Usage(t *testing.T) {
	accounts := NewAccountHandler(nil, nil, nil, NewPendingSignups(time.Hour), lock.NewUserLock(time.Second))

	c := newFakeContext(1, "/register")
	require.NoError(t, accounts.HandleRegister(c))
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "/register <username>")
}
