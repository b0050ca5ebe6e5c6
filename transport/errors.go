package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-forwarder/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ServiceErrorConfiguration
	case goerrors.CategoryExternal:
		return core.ServiceErrorTransientDelivery
	default:
		return core.ServiceErrorInternal
	}
}
