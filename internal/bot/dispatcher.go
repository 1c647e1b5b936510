package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"email-gate/internal/domain"
)

// Message es un mensaje entrante ya normalizado por el relay.
type Message struct {
	AuthorID      string `json:"author_id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Content       string `json:"content"`
	IsBot         bool   `json:"is_bot"`
	IsDirect      bool   `json:"is_direct"`
}

// Verifier es el flujo de verificación que el dispatcher expone por chat.
type Verifier interface {
	RequestVerification(ctx context.Context, identityID, rawEmail string) (domain.Outcome, error)
	Redeem(ctx context.Context, member domain.Member, submittedCode string) (domain.Outcome, error)
	WhoAmI(ctx context.Context, identityID string) (domain.Outcome, error)
	LookupByHandle(ctx context.Context, displayName, discriminator string) (domain.Outcome, error)
}

type Permissions interface {
	IsAdministrator(ctx context.Context, userID string) (bool, error)
}

type DirectMessenger interface {
	SendDirectMessage(ctx context.Context, userID, content string) error
}

// Config controla los textos y el prefijo de comandos.
type Config struct {
	Prefix        string
	CommunityName string
	ExampleDomain string
}

var handlePattern = regexp.MustCompile(`^(.+)#([0-9]{4})$`)

type requestIDKey struct{}

// WithRequestID asocia un id de request al contexto para los logs del dispatch.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Dispatcher traduce mensajes directos en operaciones del flujo.
type Dispatcher struct {
	logger    *zap.Logger
	verifier  Verifier
	perms     Permissions
	messenger DirectMessenger
	cfg       Config
}

func NewDispatcher(logger *zap.Logger, verifier Verifier, perms Permissions, messenger DirectMessenger, cfg Config) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.CommunityName == "" {
		cfg.CommunityName = "our Discord server"
	}
	if cfg.ExampleDomain == "" {
		cfg.ExampleDomain = "example.edu"
	}
	return &Dispatcher{
		logger:    logger,
		verifier:  verifier,
		perms:     perms,
		messenger: messenger,
		cfg:       cfg,
	}
}

// Dispatch procesa un mensaje y devuelve la respuesta. Cadena vacía: no responder.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) string {
	if msg.IsBot || !msg.IsDirect {
		return ""
	}
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 {
		return ""
	}

	log := d.logger.With(
		zap.String("request_id", requestID(ctx)),
		zap.String("identity_id", msg.AuthorID),
	)

	cmd, args := fields[0], fields[1:]
	switch {
	case cmd == d.cmd("iam") && len(args) >= 1:
		out, err := d.verifier.RequestVerification(ctx, msg.AuthorID, args[0])
		if err != nil {
			return d.systemError(log, "iam", err)
		}
		log.Debug("iam handled", zap.Stringer("kind", out.Kind), zap.String("reason", string(out.Reason)))
		return d.renderIAm(out)

	case cmd == d.cmd("verify") && len(args) >= 1:
		member := domain.Member{ID: msg.AuthorID, Username: msg.Username, Discriminator: msg.Discriminator}
		out, err := d.verifier.Redeem(ctx, member, args[0])
		if err != nil {
			return d.systemError(log, "verify", err)
		}
		log.Debug("verify handled", zap.Stringer("kind", out.Kind), zap.String("reason", string(out.Reason)))
		return d.renderVerify(out)

	case cmd == d.cmd("whoami"):
		out, err := d.verifier.WhoAmI(ctx, msg.AuthorID)
		if err != nil {
			return d.systemError(log, "whoami", err)
		}
		if out.Kind == domain.OutcomeSuccess {
			return "Your verified email address is " + out.Email
		}
		return fmt.Sprintf("Hmmm I'm really not sure myself but I'd love to get to know you!\nUse `%s <you@%s>` and verify your email address.",
			d.cmd("iam"), d.cfg.ExampleDomain)

	case cmd == d.cmd("lookup"):
		admin, err := d.perms.IsAdministrator(ctx, msg.AuthorID)
		if err != nil {
			return d.systemError(log, "lookup", err)
		}
		if !admin {
			return "Invalid command/format.\n" + d.commandList()
		}
		return d.lookup(ctx, log, args)

	default:
		return "Invalid command/format.\n" + d.commandList()
	}
}

func (d *Dispatcher) lookup(ctx context.Context, log *zap.Logger, args []string) string {
	var m []string
	if len(args) >= 1 {
		m = handlePattern.FindStringSubmatch(args[0])
	}
	if m == nil {
		return fmt.Sprintf("Invalid command. Format: `%s <username>#<discriminator>`", d.cmd("lookup"))
	}

	target := domain.Member{Username: m[1], Discriminator: m[2]}
	out, err := d.verifier.LookupByHandle(ctx, target.Username, target.Discriminator)
	if err != nil {
		return d.systemError(log, "lookup", err)
	}
	log.Info("lookup handled", zap.String("handle", target.Handle()), zap.String("reason", string(out.Reason)))
	if out.Kind == domain.OutcomeSuccess {
		return "Email: " + out.Email
	}
	return "User not found."
}

// Welcome envía las instrucciones a un miembro recién llegado.
func (d *Dispatcher) Welcome(ctx context.Context, memberID string) error {
	text := fmt.Sprintf("Welcome to %s!\n"+
		"To access the server please verify yourself using your school email address. "+
		"This email address will not be linked to your Discord account in any way and is only for verification purposes.\n"+
		"You can verify your email by replying with `%s <you@%s>`.\n"+
		"You will be emailed a 6-digit verification code and you can let me know by `%s <code>`.\n\n"+
		"Hope to see you soon!\n\n%s",
		d.cfg.CommunityName, d.cmd("iam"), d.cfg.ExampleDomain, d.cmd("verify"), d.commandList())

	if err := d.messenger.SendDirectMessage(ctx, memberID, text); err != nil {
		d.logger.Error("welcome dm failed", zap.String("identity_id", memberID), zap.Error(err))
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

func (d *Dispatcher) renderIAm(out domain.Outcome) string {
	switch out.Reason {
	case domain.ReasonCodeSent:
		return fmt.Sprintf("Please check your email `%s` for a 6-digit verification code. Verify using `%s <code>`",
			out.Email, d.cmd("verify"))
	case domain.ReasonAlreadyVerified:
		return "This email has already been verified."
	default:
		return fmt.Sprintf("Please enter a valid `@%s` email address.", d.cfg.ExampleDomain)
	}
}

func (d *Dispatcher) renderVerify(out domain.Outcome) string {
	switch out.Reason {
	case domain.ReasonVerified:
		return "Thanks! You have now been verified and can access the server!"
	case domain.ReasonAlreadyVerified:
		return "You're already verified!"
	case domain.ReasonEmailClaimed:
		return "This email has already been verified by another account."
	default:
		return "Invalid/Expired verification code."
	}
}

// systemError registra el fallo completo y responde solo con la operación.
func (d *Dispatcher) systemError(log *zap.Logger, command string, err error) string {
	op := command
	var sysErr *domain.SystemError
	if errors.As(err, &sysErr) {
		op = sysErr.Op
	}
	log.Error("command failed", zap.String("command", command), zap.String("op", op), zap.Error(err))
	return "Something went wrong!\n`" + op + "`"
}

func (d *Dispatcher) commandList() string {
	return fmt.Sprintf("Available commands:\n"+
		"`%s <you@%s>`: request a 6-digit verification code to verify your email address.\n"+
		"`%s <code>`: verify the code that has been emailed to you.\n"+
		"`%s`: check your verified email address.",
		d.cmd("iam"), d.cfg.ExampleDomain, d.cmd("verify"), d.cmd("whoami"))
}

func (d *Dispatcher) cmd(name string) string {
	return d.cfg.Prefix + name
}
