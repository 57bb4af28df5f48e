// Package listing owns the availability lifecycle of a listing.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/store"
)

type ActorKind string

const (
	// ActorSystem is used by the payment pipeline and the contract
	// coordinator.
	ActorSystem ActorKind = "SYSTEM"
	ActorAdmin  ActorKind = "ADMIN"
	ActorOwner  ActorKind = "OWNER"
)

type Actor struct {
	Kind   ActorKind
	UserID string
}

func System() Actor { return Actor{Kind: ActorSystem} }

func Admin(userID string) Actor { return Actor{Kind: ActorAdmin, UserID: userID} }

func Owner(userID string) Actor { return Actor{Kind: ActorOwner, UserID: userID} }

var edges = map[models.ListingStatus]map[models.ListingStatus]bool{
	models.ListingAvailable: {
		models.ListingReserved: true,
		models.ListingSold:     true,
		models.ListingRejected: true,
	},
	models.ListingReserved: {
		models.ListingSold:      true,
		models.ListingAvailable: true,
	},
}

// Allowed reports whether the graph has an edge from -> to.
func Allowed(from, to models.ListingStatus) bool {
	return edges[from][to]
}

// Transition moves the listing to status `to` on behalf of actor inside tx.
// Moving to the current status is a no-op.
func Transition(ctx context.Context, tx store.Tx, id string, to models.ListingStatus, actor Actor, now time.Time) (*models.Listing, error) {
	if !to.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown listing status %q", to))
	}

	l, err := tx.Listings().GetForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("listing", id)
	}
	if err != nil {
		return nil, apperrors.Wrap("load listing", err)
	}

	if actor.Kind == ActorAdmin {
		if err := requireAdmin(ctx, tx, actor.UserID); err != nil {
			return nil, err
		}
	}
	if err := authorize(l, to, actor); err != nil {
		return nil, err
	}
	if l.Status == to {
		return l, nil
	}
	if !Allowed(l.Status, to) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("listing %s cannot move from %s to %s", id, l.Status, to))
	}

	if err := tx.Listings().UpdateStatus(ctx, id, to, now); err != nil {
		return nil, apperrors.NewDatabaseWriteFailedError("update listing status", err)
	}
	l.Status = to
	l.UpdatedAt = now
	return l, nil
}

// ActorFor resolves userID against the user directory: administrators act
// as ADMIN, everyone else as OWNER.
func ActorFor(ctx context.Context, tx store.Tx, userID string) (Actor, error) {
	u, err := tx.Users().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return Actor{}, apperrors.NewNotFoundError("user", userID)
	}
	if err != nil {
		return Actor{}, apperrors.Wrap("load actor", err)
	}
	if u.Role == models.RoleAdmin {
		return Admin(u.ID), nil
	}
	return Owner(u.ID), nil
}

func requireAdmin(ctx context.Context, tx store.Tx, userID string) error {
	u, err := tx.Users().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewForbiddenError(fmt.Sprintf("unknown administrator %q", userID))
	}
	if err != nil {
		return apperrors.Wrap("load administrator", err)
	}
	if u.Role != models.RoleAdmin {
		return apperrors.NewForbiddenError(fmt.Sprintf("user %s is not an administrator", userID))
	}
	return nil
}

func authorize(l *models.Listing, to models.ListingStatus, actor Actor) error {
	switch actor.Kind {
	case ActorSystem:
		return nil
	case ActorAdmin:
		if to != models.ListingRejected {
			return apperrors.NewForbiddenError("administrators may only reject listings")
		}
		return nil
	case ActorOwner:
		if l.OwnerID != actor.UserID {
			return apperrors.NewForbiddenError("listing belongs to another owner")
		}
		if l.Status != models.ListingAvailable {
			return apperrors.NewForbiddenError(fmt.Sprintf("owner cannot change a %s listing", l.Status))
		}
		if to == models.ListingRejected {
			return apperrors.NewForbiddenError("owner cannot reject a listing")
		}
		return nil
	}
	return apperrors.NewForbiddenError(fmt.Sprintf("unknown actor %q", actor.Kind))
}
