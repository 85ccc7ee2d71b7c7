package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
	"github.com/velonet/lead-intake-api/internal/format"
	"github.com/velonet/lead-intake-api/internal/infra/cache"
	"github.com/velonet/lead-intake-api/internal/infra/observability"
	"github.com/velonet/lead-intake-api/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var intakeTracer = otel.Tracer("service/intake")

// LeadNotifier delivers a created lead to the configured webhook.
// Deliveries run fire-and-forget; a failure never blocks the intake flow.
type LeadNotifier interface {
	NotifyLead(ctx context.Context, lead *domain.Lead)
}

// session is the server-side state of one intake wizard. It is owned by
// exactly one visitor; there is no cross-session sharing.
type session struct {
	// mu guards the mutable fields below. It is never held across a
	// collaborator call, so state reads stay responsive while a lookup
	// or write is in flight.
	mu sync.Mutex
	// inFlight is the loading gate: while a collaborator call for the
	// current step is outstanding, further submits are no-ops.
	inFlight atomic.Bool

	id           string
	step         domain.Step
	draft        domain.LeadDraft
	viability    *domain.ViabilityResult
	notification *domain.Notification
	leadID       string
}

// IntakeService drives the multi-step lead intake state machine:
// lead_capture → cep_check → address_confirm | waitlist_offer → done.
type IntakeService struct {
	sessions   *cache.InMemory[*session]
	sessionTTL time.Duration
	viability  *ViabilityService
	leads      port.LeadStore
	notifier   LeadNotifier
	presenter  *Presenter
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewIntakeService creates the intake service. notifier may be nil when no
// webhook is configured.
func NewIntakeService(sessionTTL time.Duration, viability *ViabilityService, leads port.LeadStore, notifier LeadNotifier, metrics *observability.Metrics, logger *zap.Logger) *IntakeService {
	return &IntakeService{
		sessions:   cache.New[*session](sessionTTL),
		sessionTTL: sessionTTL,
		viability:  viability,
		leads:      leads,
		notifier:   notifier,
		presenter:  NewPresenter(),
		metrics:    metrics,
		logger:     logger,
	}
}

// businessTypeRequired is the per-plan requirement table, resolved once at
// lead capture instead of scattering plan conditionals through the flow.
var businessTypeRequired = map[domain.PlanType]bool{
	domain.PlanResidential: false,
	domain.PlanSemi:        true,
	domain.PlanDedicated:   true,
}

// Start opens a new intake session at the first step.
func (s *IntakeService) Start(ctx context.Context) *domain.IntakeSnapshot {
	_, span := intakeTracer.Start(ctx, "IntakeService.Start")
	defer span.End()

	sess := &session{
		id:   uuid.NewString(),
		step: domain.StepLeadCapture,
	}
	s.sessions.SetWithTTL(sess.id, sess, s.sessionTTL)

	s.metrics.IncrSessionStarted()
	s.logger.Info("intake session started", zap.String("session_id", sess.id))

	return s.snapshot(sess)
}

// Get returns the current state of a session.
func (s *IntakeService) Get(sessionID string) (*domain.IntakeSnapshot, error) {
	sess, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

// DismissNotification clears the active banner ahead of its timer.
func (s *IntakeService) DismissNotification(sessionID string) (*domain.IntakeSnapshot, error) {
	sess, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.notification = nil
	sess.mu.Unlock()

	return s.snapshot(sess), nil
}

// SubmitLead handles the lead_capture step: contact info and plan choice.
// No collaborator is contacted; success advances to cep_check.
func (s *IntakeService) SubmitLead(ctx context.Context, sessionID string, in *domain.LeadCaptureInput) (*domain.IntakeSnapshot, error) {
	_, span := intakeTracer.Start(ctx, "IntakeService.SubmitLead")
	defer span.End()

	sess, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStep(sess, domain.StepLeadCapture); err != nil {
		return nil, err
	}
	if err := validateLeadCapture(in); err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.draft.Name = in.Name
	sess.draft.Email = in.Email
	sess.draft.WhatsApp = format.Digits(in.WhatsApp)
	sess.draft.PlanType = in.PlanType
	sess.draft.BusinessType = in.BusinessType
	sess.step = domain.StepCepCheck
	sess.mu.Unlock()

	s.touch(sess)
	s.metrics.IncrStepTransition(domain.StepCepCheck)

	return s.snapshot(sess), nil
}

func validateLeadCapture(in *domain.LeadCaptureInput) error {
	if in.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	}
	if !format.ValidEmail(in.Email) {
		return &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	}
	if !format.ValidPhone(in.WhatsApp) {
		return &domain.ErrValidation{Field: "whatsapp", Message: "Telefone inválido"}
	}
	if !in.PlanType.Valid() {
		return &domain.ErrValidation{Field: "plan_type", Message: "Plano inválido"}
	}
	if businessTypeRequired[in.PlanType] && in.BusinessType == "" {
		return &domain.ErrValidation{Field: "business_type", Message: "Tipo de negócio é obrigatório para este plano"}
	}
	return nil
}

// SubmitCEP handles the cep_check step. A malformed CEP fails locally
// without a lookup; a successful lookup routes to address_confirm when
// viable, waitlist_offer otherwise. A lookup failure keeps the session in
// cep_check with a retryable error banner.
func (s *IntakeService) SubmitCEP(ctx context.Context, sessionID, rawCEP string) (*domain.IntakeSnapshot, error) {
	ctx, span := intakeTracer.Start(ctx, "IntakeService.SubmitCEP")
	defer span.End()

	sess, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStep(sess, domain.StepCepCheck); err != nil {
		return nil, err
	}

	cep := format.Digits(rawCEP)
	if len(cep) != 8 {
		return nil, &domain.ErrValidation{Field: "cep", Message: "CEP deve ter 8 dígitos"}
	}

	// Loading gate: a resubmit while the lookup is outstanding is a no-op.
	if !sess.inFlight.CompareAndSwap(false, true) {
		return s.snapshot(sess), nil
	}

	result, err := s.viability.Check(ctx, sess.id, cep)
	if err != nil {
		sess.inFlight.Store(false)
		s.present(sess, domain.NotifyError, "Não foi possível verificar o CEP", "Tente novamente em instantes")
		s.touch(sess)
		return nil, err
	}

	sess.mu.Lock()
	sess.viability = result
	sess.draft.CEP = result.CEP
	if result.Address != nil {
		sess.draft.Address.Street = result.Address.Street
		sess.draft.Address.Neighborhood = result.Address.Neighborhood
		sess.draft.Address.City = result.Address.City
		sess.draft.Address.State = result.Address.State
	}
	if result.Viable {
		sess.step = domain.StepAddressConfirm
		sess.notification = s.presenter.Show(domain.NotifySuccess, "Área atendida!", "Complete seus dados para continuar")
	} else {
		sess.step = domain.StepWaitlistOffer
		sess.notification = s.presenter.Show(domain.NotifyWarning, "Ainda não chegamos aí", "Entre na lista de espera e avisaremos você")
	}
	sess.mu.Unlock()
	sess.inFlight.Store(false)

	span.SetAttributes(attribute.Bool("viable", result.Viable))
	s.touch(sess)
	if result.Viable {
		s.metrics.IncrStepTransition(domain.StepAddressConfirm)
	} else {
		s.metrics.IncrStepTransition(domain.StepWaitlistOffer)
	}

	return s.snapshot(sess), nil
}

// SubmitAddress handles the address_confirm step: the remaining personal
// and address fields, then the lead write. Persistence failure keeps the
// session here; resubmitting the step is the retry.
func (s *IntakeService) SubmitAddress(ctx context.Context, sessionID string, in *domain.AddressConfirmInput) (*domain.IntakeSnapshot, error) {
	ctx, span := intakeTracer.Start(ctx, "IntakeService.SubmitAddress")
	defer span.End()

	sess, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStep(sess, domain.StepAddressConfirm); err != nil {
		return nil, err
	}
	if err := validateAddressConfirm(in); err != nil {
		return nil, err
	}

	if !sess.inFlight.CompareAndSwap(false, true) {
		return s.snapshot(sess), nil
	}

	sess.mu.Lock()
	sess.draft.Address = domain.Address{
		Street:       in.Street,
		Number:       in.Number,
		Complement:   in.Complement,
		Neighborhood: in.Neighborhood,
		City:         in.City,
		State:        in.State,
		Reference:    in.Reference,
	}
	sess.draft.CPF = format.Digits(in.CPF)
	sess.draft.RG = in.RG
	sess.draft.BirthDate = in.BirthDate
	lead := leadFromDraft(&sess.draft, false)
	sess.mu.Unlock()

	created, err := s.leads.CreateLead(ctx, lead)
	if err != nil {
		sess.inFlight.Store(false)
		s.logger.Error("intake: lead write failed",
			zap.String("session_id", sess.id),
			zap.Error(err),
		)
		s.present(sess, domain.NotifyError, "Não foi possível enviar seus dados", "Tente novamente em instantes")
		s.touch(sess)
		return nil, &domain.ErrPersistence{Op: "create_lead", Err: err}
	}

	sess.mu.Lock()
	sess.leadID = created.ID
	sess.step = domain.StepDone
	sess.notification = s.presenter.Show(domain.NotifySuccess, "Cadastro recebido!", "Em breve entraremos em contato")
	sess.mu.Unlock()
	sess.inFlight.Store(false)

	s.touch(sess)
	s.metrics.IncrStepTransition(domain.StepDone)
	s.metrics.IncrLeadCreated("lead")
	s.logger.Info("lead created",
		zap.String("session_id", sess.id),
		zap.String("lead_id", created.ID),
	)

	if s.notifier != nil {
		go s.notifier.NotifyLead(context.Background(), created)
	}

	return s.snapshot(sess), nil
}

func validateAddressConfirm(in *domain.AddressConfirmInput) error {
	switch {
	case in.Street == "":
		return &domain.ErrValidation{Field: "street", Message: "Rua é obrigatória"}
	case in.Number == "":
		return &domain.ErrValidation{Field: "number", Message: "Número é obrigatório"}
	case in.Neighborhood == "":
		return &domain.ErrValidation{Field: "neighborhood", Message: "Bairro é obrigatório"}
	case in.City == "":
		return &domain.ErrValidation{Field: "city", Message: "Cidade é obrigatória"}
	case in.State == "":
		return &domain.ErrValidation{Field: "state", Message: "Estado é obrigatório"}
	case in.RG == "":
		return &domain.ErrValidation{Field: "rg", Message: "RG é obrigatório"}
	}
	if !format.ValidCPF(in.CPF) {
		return &domain.ErrValidation{Field: "cpf", Message: "CPF inválido"}
	}
	if _, err := time.Parse("2006-01-02", in.BirthDate); err != nil {
		return &domain.ErrValidation{Field: "birth_date", Message: "Data de nascimento inválida"}
	}
	return nil
}

// SubmitWaitlist handles the waitlist_offer step. "join" persists a
// waitlist-flagged lead; "decline" discards the session without ever
// contacting the persistence backend.
func (s *IntakeService) SubmitWaitlist(ctx context.Context, sessionID, action string) (*domain.IntakeSnapshot, error) {
	ctx, span := intakeTracer.Start(ctx, "IntakeService.SubmitWaitlist")
	defer span.End()
	span.SetAttributes(attribute.String("action", action))

	sess, err := s.find(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireStep(sess, domain.StepWaitlistOffer); err != nil {
		return nil, err
	}

	if action != domain.WaitlistJoin && action != domain.WaitlistDecline {
		return nil, &domain.ErrValidation{Field: "action", Message: "Ação deve ser join ou decline"}
	}

	if !sess.inFlight.CompareAndSwap(false, true) {
		return s.snapshot(sess), nil
	}

	if action == domain.WaitlistDecline {
		sess.inFlight.Store(false)
		s.sessions.Delete(sess.id)
		s.logger.Info("waitlist declined, session discarded", zap.String("session_id", sess.id))
		return s.snapshot(sess), nil
	}

	sess.mu.Lock()
	lead := leadFromDraft(&sess.draft, true)
	sess.mu.Unlock()

	created, err := s.leads.CreateLead(ctx, lead)
	if err != nil {
		sess.inFlight.Store(false)
		s.logger.Error("intake: waitlist write failed",
			zap.String("session_id", sess.id),
			zap.Error(err),
		)
		s.present(sess, domain.NotifyError, "Não foi possível entrar na lista", "Tente novamente em instantes")
		s.touch(sess)
		return nil, &domain.ErrPersistence{Op: "create_waitlist_lead", Err: err}
	}

	sess.mu.Lock()
	sess.leadID = created.ID
	sess.step = domain.StepDone
	sess.notification = s.presenter.Show(domain.NotifySuccess, "Você está na lista!", "Avisaremos assim que chegarmos na sua região")
	sess.mu.Unlock()
	sess.inFlight.Store(false)

	s.touch(sess)
	s.metrics.IncrStepTransition(domain.StepDone)
	s.metrics.IncrLeadCreated("waitlist")

	if s.notifier != nil {
		go s.notifier.NotifyLead(context.Background(), created)
	}

	return s.snapshot(sess), nil
}

// leadFromDraft builds the persistence record. Caller holds sess.mu.
func leadFromDraft(d *domain.LeadDraft, waitlist bool) *domain.Lead {
	status := domain.LeadStatusNew
	if waitlist {
		status = domain.LeadStatusWaitlisted
	}
	return &domain.Lead{
		Name:         d.Name,
		Email:        d.Email,
		WhatsApp:     d.WhatsApp,
		PlanType:     d.PlanType,
		BusinessType: d.BusinessType,
		CEP:          d.CEP,
		Address:      d.Address,
		CPF:          d.CPF,
		RG:           d.RG,
		BirthDate:    d.BirthDate,
		Status:       status,
		Waitlist:     waitlist,
	}
}

func (s *IntakeService) find(sessionID string) (*session, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "intake session", ID: sessionID}
	}
	return sess, nil
}

func (s *IntakeService) requireStep(sess *session, want domain.Step) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.step != want {
		return &domain.ErrWrongStep{Current: sess.step, Attempted: want}
	}
	return nil
}

// touch slides the session's expiry forward.
func (s *IntakeService) touch(sess *session) {
	s.sessions.SetWithTTL(sess.id, sess, s.sessionTTL)
}

// present replaces the session banner.
func (s *IntakeService) present(sess *session, kind, title, description string) {
	sess.mu.Lock()
	sess.notification = s.presenter.Show(kind, title, description)
	sess.mu.Unlock()
}

func (s *IntakeService) snapshot(sess *session) *domain.IntakeSnapshot {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snap := &domain.IntakeSnapshot{
		SessionID: sess.id,
		Step:      sess.step,
		Loading:   sess.inFlight.Load(),
		Draft:     sess.draft,
		Viability: sess.viability,
		LeadID:    sess.leadID,
	}
	if sess.notification != nil {
		snap.Notification = s.presenter.Current(sess.notification)
	}
	return snap
}
