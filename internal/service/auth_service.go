package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository"
	"golang.org/x/crypto/argon2"
)

const minPasswordLength = 6

type AuthService struct {
	store          docstore.Store
	repos          repository.Manager
	pairing        *PairingService
	jwtSecret      []byte
	providerSecret []byte
	tokenTTL       time.Duration
	logger         logging.Logger
}

func NewAuthService(store docstore.Store, repos repository.Manager, pairing *PairingService, jwtSecret, providerSecret string, tokenTTL time.Duration, logger logging.Logger) *AuthService {
	return &AuthService{
		store:          store,
		repos:          repos,
		pairing:        pairing,
		jwtSecret:      []byte(jwtSecret),
		providerSecret: []byte(providerSecret),
		tokenTTL:       tokenTTL,
		logger:         logger.With("service", "auth"),
	}
}

type SignUpInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	InviteCode string `json:"inviteCode"`
}

type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProviderInput struct {
	Provider string `json:"provider"`
	IDToken  string `json:"idToken"`
}

type AuthResponse struct {
	Account     *domain.Account         `json:"account"`
	AccessToken string                  `json:"accessToken"`
	Reconcile   *domain.ReconcileResult `json:"reconcile,omitempty"`
}

// SignUp creates the credential and the account, then either redeems the
// given invite code or issues a fresh invite for the new account. All of it
// commits together; an unusable invite code fails the whole sign-up.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (*AuthResponse, error) {
	email := domain.NormalizeEmail(input.Email)
	if !strings.Contains(email, "@") || len(input.Password) < minPasswordLength {
		return nil, ErrInvalidInput
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	cred := &domain.Credential{Email: email, PasswordHash: hash, Provider: domain.ProviderPassword}
	account, err := s.createAccount(ctx, cred, strings.TrimSpace(input.InviteCode))
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account created", "account_id", account.ID, "paired", account.HasPartner())
	return s.respond(account, nil)
}

// SignIn checks the password and runs the pairing consistency check before
// handing out a token.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (*AuthResponse, error) {
	cred, err := s.repos.Credentials(s.store).GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, storeErr("reading credential", err)
	}
	if cred == nil || cred.Provider != domain.ProviderPassword || !verifyPassword(input.Password, cred.PasswordHash) {
		return nil, ErrInvalidCreds
	}
	return s.signIn(ctx, cred.AccountID)
}

// SignInWithProvider accepts an HS256 identity token minted by a federated
// provider. The account is created on first use.
func (s *AuthService) SignInWithProvider(ctx context.Context, input ProviderInput) (*AuthResponse, error) {
	if len(s.providerSecret) == 0 || input.Provider == "" || input.Provider == domain.ProviderPassword {
		return nil, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(input.IDToken, claims, func(t *jwt.Token) (any, error) {
		return s.providerSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	subject, _ := claims.GetSubject()
	email, _ := claims["email"].(string)
	email = domain.NormalizeEmail(email)
	if subject == "" || email == "" {
		return nil, ErrInvalidToken
	}

	cred, err := s.repos.Credentials(s.store).GetByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("reading credential", err)
	}
	if cred != nil {
		if cred.Provider != input.Provider || cred.Subject != subject {
			return nil, ErrEmailTaken
		}
		return s.signIn(ctx, cred.AccountID)
	}

	account, err := s.createAccount(ctx, &domain.Credential{Email: email, Provider: input.Provider, Subject: subject}, "")
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account created", "account_id", account.ID, "provider", input.Provider)
	return s.respond(account, nil)
}

// SignOut stamps the account. Tokens are stateless and stay valid until
// they expire.
func (s *AuthService) SignOut(ctx context.Context, sess domain.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if err := s.repos.Accounts(s.store).RecordSignOut(ctx, sess.AccountID); err != nil {
		return storeErr("signing out", err)
	}
	return nil
}

// ParseToken validates an access token and returns the session it carries.
func (s *AuthService) ParseToken(tokenStr string) (domain.Session, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return domain.Session{}, ErrInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Session{}, ErrInvalidToken
	}
	return domain.Session{AccountID: sub, AuthToken: tokenStr}, nil
}

func (s *AuthService) createAccount(ctx context.Context, cred *domain.Credential, inviteCode string) (*domain.Account, error) {
	username := generateUsername(cred.Email)
	account := &domain.Account{
		ID:                uuid.NewString(),
		Username:          username,
		UsernameLowercase: domain.NormalizeUsername(username),
		Email:             cred.Email,
	}
	cred.AccountID = account.ID

	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		creds := s.repos.Credentials(tx)
		existing, err := creds.GetByEmail(ctx, cred.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailTaken
		}
		if err := creds.Create(ctx, cred); err != nil {
			return err
		}
		if err := s.repos.Accounts(tx).Create(ctx, account); err != nil {
			return err
		}

		if inviteCode != "" {
			_, err = s.pairing.redeemInviteTx(ctx, tx, inviteCode, account.ID)
		} else {
			_, err = s.pairing.createInviteTx(ctx, tx, account.ID)
		}
		return err
	})
	if err != nil {
		return nil, storeErr("creating account", err)
	}

	created, err := s.repos.Accounts(s.store).GetByID(ctx, account.ID)
	if err != nil {
		return nil, storeErr("reading account", err)
	}
	if created == nil {
		return nil, ErrNotFound
	}
	return created, nil
}

func (s *AuthService) signIn(ctx context.Context, accountID string) (*AuthResponse, error) {
	result, err := s.pairing.Reconcile(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCreds
		}
		return nil, err
	}

	account, err := s.repos.Accounts(s.store).GetByID(ctx, accountID)
	if err != nil {
		return nil, storeErr("reading account", err)
	}
	if account == nil {
		return nil, ErrInvalidCreds
	}
	return s.respond(account, &result)
}

func (s *AuthService) respond(account *domain.Account, reconcile *domain.ReconcileResult) (*AuthResponse, error) {
	token, err := s.generateToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	return &AuthResponse{Account: account, AccessToken: token, Reconcile: reconcile}, nil
}

func (s *AuthService) generateToken(accountID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": accountID,
		"exp": now.Add(s.tokenTTL).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// generateUsername derives a starting username from the email local part
// plus a random numeric suffix.
func generateUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		local = "user"
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return local
	}
	return fmt.Sprintf("%s%d", local, n.Int64())
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}
