package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/DYArchive/distributed-youtube-tracker/pkg/apperr"
)

// storageErr hides storage detail behind STORAGE_FAILURE. AppErrors and
// context errors pass through unchanged.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperr.Storage(err)
}

// notFoundOr maps pgx.ErrNoRows to a NOT_FOUND carrying msg.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return storageErr(err)
}
