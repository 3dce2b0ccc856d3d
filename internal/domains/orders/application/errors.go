package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/go-order-fulfillment/internal/domains/orders/domain"
)

// ErrInvalidInput signals the command violated a domain invariant.
var ErrInvalidInput = errors.New("invalid order command")

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidOrder) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
