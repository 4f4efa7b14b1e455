package document

import (
	"context"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
)

type CredentialRepo struct {
	h docstore.Handle
}

func NewCredentialRepo(h docstore.Handle) *CredentialRepo {
	return &CredentialRepo{h: h}
}

func (r *CredentialRepo) Create(ctx context.Context, cred *domain.Credential) error {
	fields, err := docstore.FieldsOf(cred)
	if err != nil {
		return err
	}
	return r.h.Set(ctx, CollCredentials, keyOf(domain.NormalizeEmail(cred.Email)), fields)
}

func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	return getOne[domain.Credential](ctx, r.h, CollCredentials, keyOf(domain.NormalizeEmail(email)), nil)
}

type InviteRepo struct {
	h docstore.Handle
}

func NewInviteRepo(h docstore.Handle) *InviteRepo {
	return &InviteRepo{h: h}
}

func (r *InviteRepo) Create(ctx context.Context, invite *domain.InviteToken) error {
	return r.h.Set(ctx, CollInvites, invite.Code, docstore.Fields{
		"userId":    invite.OwnerID,
		"createdAt": docstore.ServerTimestamp,
	})
}

func (r *InviteRepo) Get(ctx context.Context, code string) (*domain.InviteToken, error) {
	return getOne(ctx, r.h, CollInvites, code, func(t *domain.InviteToken, id string) { t.Code = id })
}

func (r *InviteRepo) Delete(ctx context.Context, code string) error {
	return r.h.Delete(ctx, CollInvites, code)
}

type RequestRepo struct {
	h docstore.Handle
}

func NewRequestRepo(h docstore.Handle) *RequestRepo {
	return &RequestRepo{h: h}
}

func setRequestID(r *domain.ConnectionRequest, id string) { r.ID = id }

func (r *RequestRepo) Put(ctx context.Context, req *domain.ConnectionRequest) error {
	return r.h.Set(ctx, CollRequests, req.ID, docstore.Fields{
		"from":      req.From,
		"to":        req.To,
		"status":    req.Status,
		"createdAt": docstore.ServerTimestamp,
	})
}

func (r *RequestRepo) Get(ctx context.Context, id string) (*domain.ConnectionRequest, error) {
	return getOne(ctx, r.h, CollRequests, id, setRequestID)
}

func (r *RequestRepo) SetStatus(ctx context.Context, id, status string) error {
	return r.h.Update(ctx, CollRequests, id, docstore.Fields{"status": status})
}

func (r *RequestRepo) Delete(ctx context.Context, id string) error {
	return r.h.Delete(ctx, CollRequests, id)
}

func (r *RequestRepo) ListIncoming(ctx context.Context, toID string) ([]domain.ConnectionRequest, error) {
	return list(ctx, r.h, IncomingRequestsQuery(toID), setRequestID)
}

func (r *RequestRepo) ListOutgoing(ctx context.Context, fromID string) ([]domain.ConnectionRequest, error) {
	q := docstore.NewQuery(CollRequests).
		Where("from", docstore.OpEqual, fromID).
		Where("status", docstore.OpEqual, domain.RequestPending).
		OrderBy("createdAt", false)
	return list(ctx, r.h, q, setRequestID)
}
