package service

import (
	"errors"
	"fmt"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/metrics"
)

var (
	ErrInvalidInvite = errors.New("invalid invite code")
	ErrSelfRequest   = errors.New("cannot send a connection request to yourself")
	ErrNotFound      = errors.New("not found")
	ErrStoreWrite    = errors.New("store write failed")
	ErrUploadFailure = errors.New("upload failed")

	ErrAlreadyPaired       = errors.New("account already has a partner")
	ErrNotRequestRecipient = errors.New("only the request recipient can respond")
	ErrNotRequestSender    = errors.New("only the request sender can cancel")
	ErrRequestNotPending   = errors.New("request is no longer pending")
	ErrNoPartner           = errors.New("account has no partner")
	ErrNotMember           = errors.New("not a member of this item")
	ErrNotSender           = errors.New("only the sender can delete a message")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthenticated     = errors.New("not signed in")

	ErrEmailTaken   = errors.New("email already taken")
	ErrInvalidCreds = errors.New("invalid email or password")
	ErrInvalidToken = errors.New("invalid token")
)

// domainErrors pass through transactions unchanged; anything else coming
// out of the store is a persistence failure.
var domainErrors = []error{
	ErrInvalidInvite, ErrSelfRequest, ErrNotFound, ErrUploadFailure,
	ErrAlreadyPaired, ErrNotRequestRecipient, ErrNotRequestSender,
	ErrRequestNotPending, ErrNoPartner, ErrNotMember, ErrNotSender,
	ErrInvalidInput, ErrEmailTaken, ErrInvalidCreds, ErrInvalidToken,
}

// storeErr classifies an error returned by a store operation or a
// transaction.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	metrics.StoreWriteFailures.WithLabelValues(op).Inc()
	return fmt.Errorf("%s: %w: %w", op, ErrStoreWrite, err)
}

func requireSession(sess domain.Session) error {
	if !sess.Valid() {
		return ErrUnauthenticated
	}
	return nil
}
