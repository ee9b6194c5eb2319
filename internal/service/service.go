// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer. The admission controller
// (BookingService) owns every write that changes how many seats an event has
// left.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

// translate converts repository sentinels into the model error taxonomy.
// Errors that already carry a reason pass through untouched.
func translate(op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := model.ReasonOf(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &model.NotFoundError{Resource: resource, ID: id}
	case errors.Is(err, repository.ErrConflict):
		return &model.ConcurrencyConflictError{EventID: id, Err: err}
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return &model.TransientStorageError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
