package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"email-gate/internal/domain"
	"email-gate/internal/email"
	"email-gate/internal/repository"
)

// DefaultCodeTTL es la vigencia de un código recién emitido.
const DefaultCodeTTL = 24 * time.Hour

// Membership es la capacidad de roles de la plataforma de chat.
// GrantRole debe ser idempotente: otorgar un rol ya presente no es error.
type Membership interface {
	HasRole(ctx context.Context, userID, roleName string) (bool, error)
	GrantRole(ctx context.Context, userID, roleName string) error
}

// VerificationConfig parametriza el flujo de verificación.
type VerificationConfig struct {
	RoleName string
	CodeTTL  time.Duration
}

// VerificationService coordina la emisión y el canje de códigos.
// Es el único dueño de los stores de identidades y códigos pendientes.
type VerificationService struct {
	logger      *zap.Logger
	identities  repository.IdentityRepository
	pending     repository.PendingRepository
	validator   *DomainValidator
	emailSender email.Sender
	membership  Membership
	cfg         VerificationConfig

	// NowFunc y CodeFunc se exponen para tests.
	NowFunc  func() time.Time
	CodeFunc func(length int) string
}

func NewVerificationService(
	logger *zap.Logger,
	identities repository.IdentityRepository,
	pending repository.PendingRepository,
	validator *DomainValidator,
	emailSender email.Sender,
	membership Membership,
	cfg VerificationConfig,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	return &VerificationService{
		logger:      logger,
		identities:  identities,
		pending:     pending,
		validator:   validator,
		emailSender: emailSender,
		membership:  membership,
		cfg:         cfg,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		CodeFunc:    GenerateCode,
	}
}

// RequestVerification emite un código para identityID y lo envía a rawEmail.
// Un email ya verificado por cualquier identidad es un no-op sin escrituras.
func (s *VerificationService) RequestVerification(ctx context.Context, identityID, rawEmail string) (domain.Outcome, error) {
	const op = "request verification"

	addr, err := s.validator.Validate(rawEmail)
	if err != nil {
		return domain.Rejected(domain.ReasonInvalidDomain), nil
	}

	_, err = s.identities.GetByEmail(ctx, addr)
	switch {
	case err == nil:
		return domain.Noop(domain.ReasonAlreadyVerified), nil
	case !errors.Is(err, repository.ErrNotFound):
		return domain.Outcome{}, domain.NewSystemError(op, err)
	}

	now := s.NowFunc()
	pending := domain.PendingVerification{
		IdentityID: identityID,
		Email:      addr,
		Code:       s.CodeFunc(VerificationCodeLength),
		ExpiresAt:  now.Add(s.cfg.CodeTTL),
	}
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return domain.Outcome{}, domain.NewSystemError(op, err)
	}

	// Si el envío falla el código queda guardado; la próxima emisión lo pisa.
	if err := s.emailSender.SendVerificationCode(ctx, addr, pending.Code, pending.ExpiresAt); err != nil {
		return domain.Outcome{}, domain.NewSystemError("send verification email", err)
	}

	s.logger.Info("verification code issued",
		zap.String("identity_id", identityID),
		zap.Time("expires_at", pending.ExpiresAt),
	)

	out := domain.Success(domain.ReasonCodeSent, addr)
	out.ExpiresAt = pending.ExpiresAt
	return out, nil
}

// Redeem canjea submittedCode para member y le otorga el rol configurado.
// El rol se otorga antes de persistir la identidad, para que un fallo de la
// plataforma nunca deje un registro verificado sin acceso real.
func (s *VerificationService) Redeem(ctx context.Context, member domain.Member, submittedCode string) (domain.Outcome, error) {
	const op = "redeem code"

	hasRole, err := s.membership.HasRole(ctx, member.ID, s.cfg.RoleName)
	if err != nil {
		return domain.Outcome{}, domain.NewSystemError("check role", err)
	}
	if hasRole {
		return domain.Noop(domain.ReasonAlreadyVerified), nil
	}

	code := strings.TrimSpace(submittedCode)
	pending, err := s.pending.FindActive(ctx, member.ID, code, s.NowFunc())
	if errors.Is(err, repository.ErrNotFound) {
		// Código incorrecto, ajeno o vencido: misma respuesta para los tres.
		return domain.Rejected(domain.ReasonInvalidCode), nil
	}
	if err != nil {
		return domain.Outcome{}, domain.NewSystemError(op, err)
	}

	if err := s.membership.GrantRole(ctx, member.ID, s.cfg.RoleName); err != nil {
		return domain.Outcome{}, domain.NewSystemError("grant role", err)
	}

	identity := domain.Identity{
		ID:            member.ID,
		DisplayName:   member.Username,
		Discriminator: member.Discriminator,
		VerifiedEmail: pending.Email,
	}
	err = s.identities.CommitVerified(ctx, identity)
	if errors.Is(err, repository.ErrEmailTaken) {
		s.logger.Warn("email verified by another identity after issuance",
			zap.String("identity_id", member.ID),
		)
		return domain.Noop(domain.ReasonEmailClaimed), nil
	}
	if err != nil {
		return domain.Outcome{}, domain.NewSystemError(op, err)
	}

	s.logger.Info("identity verified", zap.String("identity_id", member.ID))
	return domain.Success(domain.ReasonVerified, pending.Email), nil
}

// WhoAmI devuelve el email verificado de identityID, si existe.
func (s *VerificationService) WhoAmI(ctx context.Context, identityID string) (domain.Outcome, error) {
	ident, err := s.identities.GetByID(ctx, identityID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Noop(domain.ReasonNotVerified), nil
	}
	if err != nil {
		return domain.Outcome{}, domain.NewSystemError("whoami", err)
	}
	return domain.Success(domain.ReasonFound, ident.VerifiedEmail), nil
}

// LookupByHandle busca por los campos de display desnormalizados.
// El chequeo de permisos lo hace quien invoca.
func (s *VerificationService) LookupByHandle(ctx context.Context, displayName, discriminator string) (domain.Outcome, error) {
	ident, err := s.identities.GetByHandle(ctx, displayName, discriminator)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Noop(domain.ReasonNotFound), nil
	}
	if err != nil {
		return domain.Outcome{}, domain.NewSystemError("lookup", err)
	}
	return domain.Success(domain.ReasonFound, ident.VerifiedEmail), nil
}
