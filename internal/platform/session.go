package platform

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"spotd/internal/config"
	"spotd/internal/logging"
	"spotd/internal/services"
)

// SessionState is the session manager's lifecycle position.
type SessionState string

const (
	StateNoSession        SessionState = "no_session"
	StateValidating       SessionState = "validating"
	StateLoggingIn        SessionState = "logging_in"
	StateReady            SessionState = "ready"
	StateChallengePending SessionState = "challenge_pending"
	StateFailed           SessionState = "failed"
)

// validationInterval is how long a validated session is trusted before the
// next EnsureReady re-validates it against the platform.
const validationInterval = 15 * time.Minute

// Session manages the one authenticated session for the configured account.
// All state transitions happen under a single mutex: at most one
// validate/login/challenge sequence is ever in flight, no matter how many
// goroutines call EnsureReady concurrently.
type Session struct {
	mu sync.Mutex

	api        API
	store      SessionStore
	challenges *ChallengeStore
	logger     *slog.Logger

	account          string
	password         string
	twoFactorSeed    string
	verificationCode string
	loginProfile     string

	state           SessionState
	lastValidatedAt time.Time
}

// NewSession wires the session manager from configuration and collaborators.
func NewSession(cfg *config.Config, api API, store SessionStore, challenges *ChallengeStore, logger *slog.Logger) *Session {
	return &Session{
		api:              api,
		store:            store,
		challenges:       challenges,
		logger:           logging.NewComponentLogger(logger, "platform-session"),
		account:          cfg.Platform.Username,
		password:         cfg.Secrets.Password,
		twoFactorSeed:    cfg.Secrets.TwoFactorSeed,
		verificationCode: cfg.Secrets.VerificationCode,
		loginProfile:     cfg.Platform.LoginDeviceProfile,
		state:            StateNoSession,
	}
}

// State reports the current lifecycle position.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureReady makes the session usable for a platform write, validating a
// cached session or performing a full login as needed. A cached session
// rejected with a recoverable signature gets exactly one fresh login before
// the error surfaces.
func (s *Session) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureReadyLocked(ctx)
}

func (s *Session) ensureReadyLocked(ctx context.Context) error {
	if s.state == StateReady && time.Since(s.lastValidatedAt) < validationInterval {
		return nil
	}

	// A challenge raised against the cached session means the session is no
	// longer trusted; the login path owns challenge handling, so both
	// recoverable and verification rejections fall through to a full login.
	if err := s.validateCachedLocked(ctx); err == nil {
		return nil
	} else if outcome := Classify(err); outcome != OutcomeRecoverable && outcome != OutcomeVerification && !errors.Is(err, ErrNoSession) {
		s.state = StateFailed
		return services.Wrap(services.ErrAuthenticationRequired, "session", "validate", "cached session rejected", err)
	}

	return s.loginLocked(ctx)
}

// Invalidate discards the cached session so the next EnsureReady performs a
// full login. The publisher calls this when an upload fails with a
// session-invalidating signature.
func (s *Session) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateNoSession
	s.lastValidatedAt = time.Time{}
	if err := s.store.Delete(s.account); err != nil {
		return services.Wrap(services.ErrStorage, "session", "invalidate", "remove persisted session", err)
	}
	s.logger.Info("session invalidated", logging.String("account", s.account))
	return nil
}

// SubmitVerificationCode answers a pending challenge with a code supplied
// out of band, then persists the resulting session.
func (s *Session) SubmitVerificationCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges.Get(s.account)
	if !ok {
		return services.Wrap(services.ErrValidation, "session", "verify", "no pending challenge for account", nil)
	}
	if err := s.api.SubmitChallengeCode(ctx, challenge.APIPath, code); err != nil {
		s.state = StateFailed
		return services.Wrap(services.ErrVerificationRequired, "session", "verify", "challenge code rejected", err)
	}
	s.challenges.Clear(s.account)
	return s.completeLoginLocked()
}

// validateCachedLocked loads the persisted blob and confirms the platform
// still accepts it.
func (s *Session) validateCachedLocked(ctx context.Context) error {
	blob, err := s.store.Load(s.account)
	if err != nil {
		return err
	}
	s.state = StateValidating
	if err := s.api.ImportState(blob); err != nil {
		return err
	}
	if err := s.api.ValidateSession(ctx); err != nil {
		s.logger.Info("cached session rejected",
			logging.String("account", s.account),
			logging.String("outcome", Classify(err).String()),
			logging.Error(err),
		)
		return err
	}
	s.state = StateReady
	s.lastValidatedAt = time.Now()
	s.logger.Debug("cached session validated", logging.String("account", s.account))
	return nil
}

// loginLocked performs a full login, handling two-factor prompts and
// verification challenges.
func (s *Session) loginLocked(ctx context.Context) error {
	if s.password == "" {
		s.state = StateFailed
		return services.Wrap(services.ErrConfiguration, "session", "login", "platform password not set in environment", nil)
	}

	s.state = StateLoggingIn
	// The platform rejects logins from device profiles it considers
	// outdated, so a full login always presents the newer profile.
	s.api.SetDeviceProfile(s.loginProfile)
	s.logger.Info("performing full login", logging.String("account", s.account))

	err := s.api.Login(ctx, s.account, s.password)
	if err == nil {
		return s.completeLoginLocked()
	}

	var twoFactor *TwoFactorRequiredError
	if errors.As(err, &twoFactor) {
		return s.answerTwoFactorLocked(ctx, twoFactor)
	}
	var challenge *ChallengeRequiredError
	if errors.As(err, &challenge) {
		return s.answerChallengeLocked(ctx, challenge)
	}

	s.state = StateFailed
	return services.Wrap(services.ErrAuthenticationRequired, "session", "login", "login rejected", err)
}

func (s *Session) answerTwoFactorLocked(ctx context.Context, prompt *TwoFactorRequiredError) error {
	if s.twoFactorSeed == "" {
		s.state = StateFailed
		return services.Wrap(services.ErrVerificationRequired, "session", "two-factor", "two-factor required but no seed configured", nil)
	}
	code, err := totp.GenerateCode(s.twoFactorSeed, time.Now())
	if err != nil {
		s.state = StateFailed
		return services.Wrap(services.ErrConfiguration, "session", "two-factor", "generate code from seed", err)
	}
	if err := s.api.SubmitTwoFactor(ctx, prompt.Identifier, code); err != nil {
		s.state = StateFailed
		return services.Wrap(services.ErrAuthenticationRequired, "session", "two-factor", "code rejected", err)
	}
	return s.completeLoginLocked()
}

func (s *Session) answerChallengeLocked(ctx context.Context, challenge *ChallengeRequiredError) error {
	s.state = StateChallengePending
	method := chooseChallengeMethod(challenge.Methods)
	if err := s.api.SelectChallengeMethod(ctx, challenge.APIPath, method); err != nil {
		s.state = StateFailed
		return services.Wrap(services.ErrVerificationRequired, "session", "challenge", "select verification method", err)
	}
	s.challenges.Put(s.account, ChallengeState{
		APIPath: challenge.APIPath,
		Method:  method,
		Methods: challenge.Methods,
	})
	s.logger.Warn("verification challenge pending",
		logging.String("account", s.account),
		logging.String("method", method),
	)

	// A pre-provisioned one-time code answers the challenge immediately;
	// otherwise the operator must supply one out of band.
	if s.verificationCode != "" {
		if err := s.api.SubmitChallengeCode(ctx, challenge.APIPath, s.verificationCode); err != nil {
			s.state = StateFailed
			return services.Wrap(services.ErrVerificationRequired, "session", "challenge", "pre-provisioned code rejected", err)
		}
		s.challenges.Clear(s.account)
		return s.completeLoginLocked()
	}
	return services.Wrap(services.ErrVerificationRequired, "session", "challenge", "verification code needed via method "+method, nil)
}

func (s *Session) completeLoginLocked() error {
	blob, err := s.api.ExportState()
	if err != nil {
		s.state = StateFailed
		return services.Wrap(services.ErrStorage, "session", "persist", "export session state", err)
	}
	if err := s.store.Save(s.account, blob); err != nil {
		s.state = StateFailed
		return services.Wrap(services.ErrStorage, "session", "persist", "save session state", err)
	}
	s.state = StateReady
	s.lastValidatedAt = time.Now()
	s.logger.Info("login successful, session persisted", logging.String("account", s.account))
	return nil
}

// chooseChallengeMethod prefers email delivery; the account mailbox is the
// one channel the operator always controls.
func chooseChallengeMethod(methods []string) string {
	for _, method := range methods {
		if method == "email" {
			return method
		}
	}
	if len(methods) > 0 {
		return methods[0]
	}
	return "email"
}
