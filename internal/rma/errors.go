package rma

import "errors"

var (
	// ErrNoEpoch is returned for an operation that needs an epoch which is
	// not open: a Get outside any epoch, Complete without Start, Wait
	// without Post.
	ErrNoEpoch = errors.New("rma: no epoch open")

	// ErrEpochActive is returned when opening an epoch that conflicts with
	// one already open on the window.
	ErrEpochActive = errors.New("rma: epoch already active")

	// ErrNotInGroup is returned for a Get against a rank outside the
	// current access group.
	ErrNotInGroup = errors.New("rma: target not in access group")

	// ErrNotExposed is returned by a target refusing a Get from an origin
	// it has not exposed its window to.
	ErrNotExposed = errors.New("rma: window not exposed to origin")

	// ErrEmptyGroup is returned by Post and Start called with no members.
	ErrEmptyGroup = errors.New("rma: empty group")

	// ErrGroupFreed is returned when a freed group is used.
	ErrGroupFreed = errors.New("rma: group already freed")

	// ErrUnknownWindow is returned for a request naming a window the
	// target has not created or has freed.
	ErrUnknownWindow = errors.New("rma: unknown window")

	// ErrBadRank is returned for a rank outside the communicator.
	ErrBadRank = errors.New("rma: rank out of range")
)
