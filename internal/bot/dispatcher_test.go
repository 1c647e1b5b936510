package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"email-gate/internal/domain"
)

type mockVerifier struct {
	calls      []string
	lastEmail  string
	lastMember domain.Member
	lastCode   string
	lastName   string
	lastDisc   string
	out        domain.Outcome
	err        error
}

func (m *mockVerifier) RequestVerification(_ context.Context, identityID, rawEmail string) (domain.Outcome, error) {
	m.calls = append(m.calls, "iam")
	m.lastEmail = rawEmail
	return m.out, m.err
}

func (m *mockVerifier) Redeem(_ context.Context, member domain.Member, code string) (domain.Outcome, error) {
	m.calls = append(m.calls, "verify")
	m.lastMember = member
	m.lastCode = code
	return m.out, m.err
}

func (m *mockVerifier) WhoAmI(_ context.Context, identityID string) (domain.Outcome, error) {
	m.calls = append(m.calls, "whoami")
	return m.out, m.err
}

func (m *mockVerifier) LookupByHandle(_ context.Context, name, disc string) (domain.Outcome, error) {
	m.calls = append(m.calls, "lookup")
	m.lastName = name
	m.lastDisc = disc
	return m.out, m.err
}

type mockPermissions struct {
	admins map[string]bool
	err    error
}

func (m *mockPermissions) IsAdministrator(_ context.Context, userID string) (bool, error) {
	return m.admins[userID], m.err
}

type mockMessenger struct {
	lastUser string
	lastText string
	err      error
}

func (m *mockMessenger) SendDirectMessage(_ context.Context, userID, content string) error {
	m.lastUser = userID
	m.lastText = content
	return m.err
}

func newTestDispatcher(v *mockVerifier) (*Dispatcher, *mockPermissions, *mockMessenger) {
	perms := &mockPermissions{admins: map[string]bool{"admin": true}}
	msgr := &mockMessenger{}
	d := NewDispatcher(zap.NewNop(), v, perms, msgr, Config{CommunityName: "Test Server", ExampleDomain: "school.edu"})
	return d, perms, msgr
}

func dm(author, content string) Message {
	return Message{AuthorID: author, Username: "alice", Discriminator: "1234", Content: content, IsDirect: true}
}

func TestDispatch_IgnoresBotsAndChannels(t *testing.T) {
	v := &mockVerifier{}
	d, _, _ := newTestDispatcher(v)

	bot := dm("u1", "!whoami")
	bot.IsBot = true
	channel := dm("u1", "!whoami")
	channel.IsDirect = false

	for _, msg := range []Message{bot, channel, dm("u1", "   ")} {
		if reply := d.Dispatch(context.Background(), msg); reply != "" {
			t.Fatalf("expected no reply, got %q", reply)
		}
	}
	if len(v.calls) != 0 {
		t.Fatalf("expected no verifier calls, got %v", v.calls)
	}
}

func TestDispatch_IAm(t *testing.T) {
	v := &mockVerifier{out: domain.Success(domain.ReasonCodeSent, "a@school.edu")}
	d, _, _ := newTestDispatcher(v)

	reply := d.Dispatch(context.Background(), dm("u1", "!iam A@School.edu extra"))
	if v.lastEmail != "A@School.edu" {
		t.Fatalf("expected raw email passed, got %s", v.lastEmail)
	}
	if !strings.Contains(reply, "`a@school.edu`") || !strings.Contains(reply, "!verify <code>") {
		t.Fatalf("unexpected reply %q", reply)
	}

	v.out = domain.Rejected(domain.ReasonInvalidDomain)
	if reply := d.Dispatch(context.Background(), dm("u1", "!iam a@other.edu")); !strings.Contains(reply, "valid") {
		t.Fatalf("expected invalid domain reply, got %q", reply)
	}

	v.out = domain.Noop(domain.ReasonAlreadyVerified)
	if reply := d.Dispatch(context.Background(), dm("u1", "!iam a@school.edu")); reply != "This email has already been verified." {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestDispatch_IAmWithoutArgumentIsHelp(t *testing.T) {
	v := &mockVerifier{}
	d, _, _ := newTestDispatcher(v)

	reply := d.Dispatch(context.Background(), dm("u1", "!iam"))
	if !strings.HasPrefix(reply, "Invalid command/format.") {
		t.Fatalf("expected help, got %q", reply)
	}
	if len(v.calls) != 0 {
		t.Fatalf("expected no verifier calls, got %v", v.calls)
	}
}

func TestDispatch_Verify(t *testing.T) {
	v := &mockVerifier{out: domain.Success(domain.ReasonVerified, "a@school.edu")}
	d, _, _ := newTestDispatcher(v)

	reply := d.Dispatch(context.Background(), dm("u1", "!verify 123456"))
	if reply != "Thanks! You have now been verified and can access the server!" {
		t.Fatalf("unexpected reply %q", reply)
	}
	want := domain.Member{ID: "u1", Username: "alice", Discriminator: "1234"}
	if v.lastMember != want || v.lastCode != "123456" {
		t.Fatalf("unexpected redeem args %+v %s", v.lastMember, v.lastCode)
	}

	cases := map[domain.Reason]string{
		domain.ReasonAlreadyVerified: "You're already verified!",
		domain.ReasonInvalidCode:     "Invalid/Expired verification code.",
		domain.ReasonEmailClaimed:    "This email has already been verified by another account.",
	}
	for reason, want := range cases {
		v.out = domain.Outcome{Reason: reason}
		if got := d.Dispatch(context.Background(), dm("u1", "!verify 000000")); got != want {
			t.Fatalf("%s: expected %q, got %q", reason, want, got)
		}
	}
}

func TestDispatch_WhoAmI(t *testing.T) {
	v := &mockVerifier{out: domain.Success(domain.ReasonFound, "a@school.edu")}
	d, _, _ := newTestDispatcher(v)

	if reply := d.Dispatch(context.Background(), dm("u1", "!whoami")); reply != "Your verified email address is a@school.edu" {
		t.Fatalf("unexpected reply %q", reply)
	}

	v.out = domain.Noop(domain.ReasonNotVerified)
	reply := d.Dispatch(context.Background(), dm("u1", "!whoami"))
	if !strings.Contains(reply, "!iam <you@school.edu>") {
		t.Fatalf("expected iam instructions, got %q", reply)
	}
}

func TestDispatch_LookupRequiresAdministrator(t *testing.T) {
	v := &mockVerifier{out: domain.Success(domain.ReasonFound, "a@school.edu")}
	d, _, _ := newTestDispatcher(v)

	reply := d.Dispatch(context.Background(), dm("u1", "!lookup alice#1234"))
	if !strings.HasPrefix(reply, "Invalid command/format.") {
		t.Fatalf("expected help for non-admin, got %q", reply)
	}
	if len(v.calls) != 0 {
		t.Fatalf("expected no lookup for non-admin, got %v", v.calls)
	}

	reply = d.Dispatch(context.Background(), dm("admin", "!lookup alice#1234"))
	if reply != "Email: a@school.edu" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if v.lastName != "alice" || v.lastDisc != "1234" {
		t.Fatalf("unexpected handle %s#%s", v.lastName, v.lastDisc)
	}

	v.out = domain.Noop(domain.ReasonNotFound)
	if reply := d.Dispatch(context.Background(), dm("admin", "!lookup bob#0001")); reply != "User not found." {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestDispatch_LookupMalformedHandle(t *testing.T) {
	v := &mockVerifier{}
	d, _, _ := newTestDispatcher(v)

	for _, content := range []string{"!lookup", "!lookup alice", "!lookup alice#12", "!lookup #1234"} {
		reply := d.Dispatch(context.Background(), dm("admin", content))
		if reply != "Invalid command. Format: `!lookup <username>#<discriminator>`" {
			t.Fatalf("%q: unexpected reply %q", content, reply)
		}
	}
	if len(v.calls) != 0 {
		t.Fatalf("expected no lookups, got %v", v.calls)
	}
}

func TestDispatch_SystemErrorIsGeneric(t *testing.T) {
	v := &mockVerifier{err: domain.NewSystemError("grant role", errors.New("discord 503: secret detail"))}
	d, _, _ := newTestDispatcher(v)

	reply := d.Dispatch(context.Background(), dm("u1", "!verify 123456"))
	if reply != "Something went wrong!\n`grant role`" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestDispatch_PermissionErrorIsSystemError(t *testing.T) {
	v := &mockVerifier{}
	d, perms, _ := newTestDispatcher(v)
	perms.err = errors.New("timeout")

	reply := d.Dispatch(context.Background(), dm("admin", "!lookup alice#1234"))
	if !strings.HasPrefix(reply, "Something went wrong!") {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestDispatch_UnknownCommandIsHelp(t *testing.T) {
	v := &mockVerifier{}
	d, _, _ := newTestDispatcher(v)

	reply := d.Dispatch(context.Background(), dm("u1", "hello there"))
	if !strings.Contains(reply, "Available commands:") || !strings.Contains(reply, "`!whoami`") {
		t.Fatalf("expected help, got %q", reply)
	}
}

func TestDispatch_CustomPrefix(t *testing.T) {
	v := &mockVerifier{out: domain.Noop(domain.ReasonNotVerified)}
	d := NewDispatcher(zap.NewNop(), v, &mockPermissions{}, &mockMessenger{}, Config{Prefix: "?"})

	d.Dispatch(context.Background(), dm("u1", "?whoami"))
	d.Dispatch(context.Background(), dm("u1", "!whoami"))
	if len(v.calls) != 1 {
		t.Fatalf("expected only prefixed command handled, got %v", v.calls)
	}
}

func TestWelcome(t *testing.T) {
	d, _, msgr := newTestDispatcher(&mockVerifier{})

	if err := d.Welcome(context.Background(), "u7"); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if msgr.lastUser != "u7" || !strings.Contains(msgr.lastText, "Welcome to Test Server!") {
		t.Fatalf("unexpected welcome %s %q", msgr.lastUser, msgr.lastText)
	}

	msgr.err = errors.New("dm closed")
	if err := d.Welcome(context.Background(), "u7"); err == nil {
		t.Fatalf("expected error when dm fails")
	}
}

func TestDispatch_LookupLogsHandle(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	v := &mockVerifier{out: domain.Noop(domain.ReasonNotFound)}
	perms := &mockPermissions{admins: map[string]bool{"admin": true}}
	d := NewDispatcher(zap.New(core), v, perms, &mockMessenger{}, Config{})

	d.Dispatch(context.Background(), dm("admin", "!lookup bob.smith#0042"))
	if v.lastName != "bob.smith" || v.lastDisc != "0042" {
		t.Fatalf("unexpected handle %s#%s", v.lastName, v.lastDisc)
	}

	entries := logs.FilterMessage("lookup handled").All()
	if len(entries) != 1 {
		t.Fatalf("expected one lookup log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["handle"]; got != "bob.smith#0042" {
		t.Fatalf("expected handle bob.smith#0042, got %v", got)
	}
}
