package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/logging"
	"github.com/vedran77/tandem/internal/repository"
	"github.com/vedran77/tandem/internal/repository/document"
)

const (
	inviteAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	maxInviteAttempts = 8
	searchLimit       = 20
)

type PairingService struct {
	store         docstore.Store
	repos         repository.Manager
	notifications *NotificationService
	logger        logging.Logger
	codeLength    int
}

func NewPairingService(store docstore.Store, repos repository.Manager, notifications *NotificationService, logger logging.Logger, codeLength int) *PairingService {
	return &PairingService{
		store:         store,
		repos:         repos,
		notifications: notifications,
		logger:        logger.With("service", "pairing"),
		codeLength:    codeLength,
	}
}

// CreateInvite issues a fresh invite code for ownerID and stamps it on the
// account.
func (s *PairingService) CreateInvite(ctx context.Context, ownerID string) (string, error) {
	var code string
	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		var err error
		code, err = s.createInviteTx(ctx, tx, ownerID)
		return err
	})
	if err != nil {
		return "", storeErr("creating invite", err)
	}
	return code, nil
}

func (s *PairingService) createInviteTx(ctx context.Context, tx docstore.Handle, ownerID string) (string, error) {
	invites := s.repos.Invites(tx)
	for attempt := 1; attempt <= maxInviteAttempts; attempt++ {
		code, err := generateInviteCode(s.codeLength)
		if err != nil {
			return "", fmt.Errorf("generating invite code: %w", err)
		}
		existing, err := invites.Get(ctx, code)
		if err != nil {
			return "", err
		}
		if existing != nil {
			s.logger.Warn(ctx, "invite code collision, regenerating", "attempt", attempt)
			continue
		}
		if err := invites.Create(ctx, &domain.InviteToken{Code: code, OwnerID: ownerID}); err != nil {
			return "", err
		}
		if err := s.repos.Accounts(tx).SetInviteCode(ctx, ownerID, code); err != nil {
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("no free invite code after %d attempts", maxInviteAttempts)
}

// RedeemInvite pairs newAccountID with the owner of code. The token lookup,
// both account writes and the token deletion commit together.
func (s *PairingService) RedeemInvite(ctx context.Context, code, newAccountID string) (string, error) {
	var partnerID string
	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		var err error
		partnerID, err = s.redeemInviteTx(ctx, tx, code, newAccountID)
		return err
	})
	if err != nil {
		return "", storeErr("redeeming invite", err)
	}
	s.logger.Info(ctx, "invite redeemed", "account_id", newAccountID, "partner_id", partnerID)
	return partnerID, nil
}

func (s *PairingService) redeemInviteTx(ctx context.Context, tx docstore.Handle, code, newAccountID string) (string, error) {
	if code == "" {
		return "", ErrInvalidInvite
	}
	invites := s.repos.Invites(tx)
	accounts := s.repos.Accounts(tx)

	token, err := invites.Get(ctx, code)
	if err != nil {
		return "", err
	}
	if token == nil || token.OwnerID == newAccountID {
		return "", ErrInvalidInvite
	}

	owner, err := accounts.GetByID(ctx, token.OwnerID)
	if err != nil {
		return "", err
	}
	if owner == nil {
		return "", ErrInvalidInvite
	}
	if owner.HasPartner() {
		return "", ErrAlreadyPaired
	}

	newAccount, err := accounts.GetByID(ctx, newAccountID)
	if err != nil {
		return "", err
	}
	if newAccount == nil {
		return "", ErrNotFound
	}
	if newAccount.HasPartner() {
		return "", ErrAlreadyPaired
	}

	if err := accounts.SetPartner(ctx, newAccountID, &owner.ID); err != nil {
		return "", err
	}
	if err := accounts.SetPartner(ctx, owner.ID, &newAccountID); err != nil {
		return "", err
	}
	if err := invites.Delete(ctx, code); err != nil {
		return "", err
	}
	return owner.ID, nil
}

// SearchAccounts does a case-insensitive username prefix search, excluding
// the caller.
func (s *PairingService) SearchAccounts(ctx context.Context, sess domain.Session, term string) ([]domain.Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	prefix := domain.NormalizeUsername(term)
	if prefix == "" {
		return []domain.Account{}, nil
	}

	found, err := s.repos.Accounts(s.store).SearchByUsernamePrefix(ctx, prefix, searchLimit+1)
	if err != nil {
		return nil, storeErr("searching accounts", err)
	}
	out := make([]domain.Account, 0, len(found))
	for _, a := range found {
		if a.ID == sess.AccountID {
			continue
		}
		out = append(out, a)
	}
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out, nil
}

// FindByEmail looks up a prospective partner by exact email.
func (s *PairingService) FindByEmail(ctx context.Context, sess domain.Session, email string) (*domain.Account, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	a, err := s.repos.Accounts(s.store).GetByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("finding account", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if a.ID == sess.AccountID {
		return nil, ErrSelfRequest
	}
	return a, nil
}

// SendConnectionRequest asks toID to become the caller's partner. Re-sending
// while a request is pending returns the existing request unchanged; a
// declined or accepted request is reset to pending.
func (s *PairingService) SendConnectionRequest(ctx context.Context, sess domain.Session, toID string) (*domain.ConnectionRequest, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if toID == sess.AccountID {
		return nil, ErrSelfRequest
	}

	var result *domain.ConnectionRequest
	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		accounts := s.repos.Accounts(tx)
		requests := s.repos.Requests(tx)

		sender, err := accounts.GetByID(ctx, sess.AccountID)
		if err != nil {
			return err
		}
		if sender == nil {
			return ErrNotFound
		}
		target, err := accounts.GetByID(ctx, toID)
		if err != nil {
			return err
		}
		if target == nil {
			return ErrNotFound
		}
		if sender.HasPartner() || target.HasPartner() {
			return ErrAlreadyPaired
		}

		id := domain.RequestID(sess.AccountID, toID)
		existing, err := requests.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == domain.RequestPending {
			result = existing
			return nil
		}

		req := &domain.ConnectionRequest{ID: id, From: sess.AccountID, To: toID, Status: domain.RequestPending}
		if err := requests.Put(ctx, req); err != nil {
			return err
		}
		result, err = requests.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeErr("sending connection request", err)
	}
	return result, nil
}

// RespondToRequest accepts or declines a pending request addressed to the
// caller. Accepting sets the request status and both partner links in one
// transaction.
func (s *PairingService) RespondToRequest(ctx context.Context, sess domain.Session, requestID string, accept bool) (*domain.ConnectionRequest, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	var (
		req       *domain.ConnectionRequest
		responder *domain.Account
	)
	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		accounts := s.repos.Accounts(tx)
		requests := s.repos.Requests(tx)

		var err error
		req, err = requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrNotFound
		}
		if req.To != sess.AccountID {
			return ErrNotRequestRecipient
		}
		if req.Status != domain.RequestPending {
			return ErrRequestNotPending
		}

		if !accept {
			req.Status = domain.RequestDeclined
			return requests.SetStatus(ctx, requestID, domain.RequestDeclined)
		}

		from, err := accounts.GetByID(ctx, req.From)
		if err != nil {
			return err
		}
		responder, err = accounts.GetByID(ctx, req.To)
		if err != nil {
			return err
		}
		if from == nil || responder == nil {
			return ErrNotFound
		}
		if from.HasPartner() || responder.HasPartner() {
			return ErrAlreadyPaired
		}

		req.Status = domain.RequestAccepted
		if err := requests.SetStatus(ctx, requestID, domain.RequestAccepted); err != nil {
			return err
		}
		if err := accounts.SetPartner(ctx, from.ID, &responder.ID); err != nil {
			return err
		}
		return accounts.SetPartner(ctx, responder.ID, &from.ID)
	})
	if err != nil {
		return nil, storeErr("responding to request", err)
	}

	if accept {
		s.logger.Info(ctx, "partners paired", "account_id", req.From, "partner_id", req.To)
		s.notifyBestEffort(ctx, req.From, fmt.Sprintf("%s accepted your connection request.", responder.Username))
	}
	return req, nil
}

// CancelRequest withdraws a pending request the caller sent.
func (s *PairingService) CancelRequest(ctx context.Context, sess domain.Session, requestID string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		requests := s.repos.Requests(tx)
		req, err := requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrNotFound
		}
		if req.From != sess.AccountID {
			return ErrNotRequestSender
		}
		if req.Status != domain.RequestPending {
			return ErrRequestNotPending
		}
		return requests.Delete(ctx, requestID)
	})
	return storeErr("cancelling request", err)
}

func (s *PairingService) ListIncoming(ctx context.Context, sess domain.Session) ([]domain.ConnectionRequest, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	reqs, err := s.repos.Requests(s.store).ListIncoming(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("listing requests", err)
	}
	return s.withUsernames(ctx, reqs)
}

func (s *PairingService) ListOutgoing(ctx context.Context, sess domain.Session) ([]domain.ConnectionRequest, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	reqs, err := s.repos.Requests(s.store).ListOutgoing(ctx, sess.AccountID)
	if err != nil {
		return nil, storeErr("listing requests", err)
	}
	return s.withUsernames(ctx, reqs)
}

// SubscribeIncoming streams the caller's pending incoming requests.
func (s *PairingService) SubscribeIncoming(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.ConnectionRequest], error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return livesync.Subscribe(ctx, s.store, document.IncomingRequestsQuery(sess.AccountID), document.ProjectRequest)
}

func (s *PairingService) withUsernames(ctx context.Context, reqs []domain.ConnectionRequest) ([]domain.ConnectionRequest, error) {
	accounts := s.repos.Accounts(s.store)
	names := make(map[string]string)
	lookup := func(id string) (string, error) {
		if name, ok := names[id]; ok {
			return name, nil
		}
		a, err := accounts.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if a != nil {
			names[id] = a.Username
		}
		return names[id], nil
	}

	out := make([]domain.ConnectionRequest, len(reqs))
	for i, r := range reqs {
		var err error
		if r.FromUsername, err = lookup(r.From); err != nil {
			return nil, storeErr("listing requests", err)
		}
		if r.ToUsername, err = lookup(r.To); err != nil {
			return nil, storeErr("listing requests", err)
		}
		out[i] = r
	}
	return out, nil
}

// RemovePartner unlinks the caller and their partner, then tells the former
// partner. Calling it without a partner is a no-op.
func (s *PairingService) RemovePartner(ctx context.Context, sess domain.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}

	var me, former *domain.Account
	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		accounts := s.repos.Accounts(tx)
		var err error
		me, err = accounts.GetByID(ctx, sess.AccountID)
		if err != nil {
			return err
		}
		if me == nil {
			return ErrNotFound
		}
		if !me.HasPartner() {
			return nil
		}

		former, err = accounts.GetByID(ctx, me.Partner())
		if err != nil {
			return err
		}
		if err := accounts.SetPartner(ctx, me.ID, nil); err != nil {
			return err
		}
		if former != nil && former.Partner() == me.ID {
			return accounts.SetPartner(ctx, former.ID, nil)
		}
		return nil
	})
	if err != nil {
		return storeErr("removing partner", err)
	}

	if former != nil {
		s.logger.Info(ctx, "partners unpaired", "account_id", me.ID, "partner_id", former.ID)
		s.notifyBestEffort(ctx, former.ID, fmt.Sprintf("%s has removed you as their partner.", me.Username))
	}
	return nil
}

// Reconcile checks that accountID's partner link is mutual. A one-sided
// link is cleared on the dangling side.
func (s *PairingService) Reconcile(ctx context.Context, accountID string) (domain.ReconcileResult, error) {
	result := domain.ReconcileResult{AccountID: accountID}
	err := s.store.Transact(ctx, func(ctx context.Context, tx docstore.Handle) error {
		accounts := s.repos.Accounts(tx)
		a, err := accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrNotFound
		}
		if !a.HasPartner() {
			result.Status = domain.ReconcileUnpaired
			return nil
		}

		result.PartnerID = a.Partner()
		p, err := accounts.GetByID(ctx, a.Partner())
		if err != nil {
			return err
		}
		if p != nil && p.Partner() == a.ID {
			result.Status = domain.ReconcileOK
			return nil
		}

		result.Status = domain.ReconcileHealed
		return accounts.SetPartner(ctx, a.ID, nil)
	})
	if err != nil {
		return domain.ReconcileResult{}, storeErr("reconciling pairing", err)
	}
	if result.Status == domain.ReconcileHealed {
		s.logger.Warn(ctx, "cleared one-sided partner link", "account_id", accountID, "partner_id", result.PartnerID)
	}
	return result, nil
}

// ReconcileAll runs Reconcile over every account.
func (s *PairingService) ReconcileAll(ctx context.Context) ([]domain.ReconcileResult, error) {
	accounts, err := s.repos.Accounts(s.store).List(ctx)
	if err != nil {
		return nil, storeErr("listing accounts", err)
	}
	results := make([]domain.ReconcileResult, 0, len(accounts))
	for _, a := range accounts {
		r, err := s.Reconcile(ctx, a.ID)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *PairingService) notifyBestEffort(ctx context.Context, accountID, message string) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Notify(ctx, accountID, message); err != nil {
		s.logger.Error(ctx, "notification not delivered", "account_id", accountID, "error", err)
	}
}

func generateInviteCode(length int) (string, error) {
	max := big.NewInt(int64(len(inviteAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = inviteAlphabet[n.Int64()]
	}
	return string(b), nil
}
