package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	serviceTextCodePrefix = "FORWARD_"

	ServiceErrorBadInput = "FORWARD_BAD_INPUT"
	ServiceErrorNotFound = "FORWARD_NOT_FOUND"
	ServiceErrorConflict = "FORWARD_CONFLICT"
	ServiceErrorInternal = "FORWARD_INTERNAL_ERROR"

	ServiceErrorTransientDelivery = "FORWARD_TRANSIENT_DELIVERY"
	ServiceErrorConfiguration     = "FORWARD_CONFIGURATION"
	ServiceErrorDataIntegrity     = "FORWARD_DATA_INTEGRITY"
)

type DeliveryErrorKind string

const (
	DeliveryErrorUnknown       DeliveryErrorKind = ""
	DeliveryErrorTransient     DeliveryErrorKind = "transient"
	DeliveryErrorConfiguration DeliveryErrorKind = "configuration"
	DeliveryErrorDataIntegrity DeliveryErrorKind = "data_integrity"
)

func NewTransientDeliveryError(source error, message string, metadata map[string]any) error {
	return deliveryError(source, goerrors.CategoryExternal, ServiceErrorTransientDelivery, http.StatusBadGateway, message, metadata)
}

func NewConfigurationError(source error, message string, metadata map[string]any) error {
	return deliveryError(source, goerrors.CategoryBadInput, ServiceErrorConfiguration, http.StatusUnprocessableEntity, message, metadata)
}

func NewDataIntegrityError(source error, message string, metadata map[string]any) error {
	return deliveryError(source, goerrors.CategoryNotFound, ServiceErrorDataIntegrity, http.StatusNotFound, message, metadata)
}

func deliveryError(
	source error,
	category goerrors.Category,
	textCode string,
	code int,
	message string,
	metadata map[string]any,
) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ClassifyDeliveryError maps an error onto the delivery taxonomy using its
// go-errors text code, falling back to the store sentinels.
func ClassifyDeliveryError(err error) DeliveryErrorKind {
	if err == nil {
		return DeliveryErrorUnknown
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.TextCode {
		case ServiceErrorTransientDelivery:
			return DeliveryErrorTransient
		case ServiceErrorConfiguration:
			return DeliveryErrorConfiguration
		case ServiceErrorDataIntegrity:
			return DeliveryErrorDataIntegrity
		}
	}
	if errors.Is(err, ErrRuleNotFound) || errors.Is(err, ErrMessageNotFound) {
		return DeliveryErrorDataIntegrity
	}
	return DeliveryErrorUnknown
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrRuleNotFound), errors.Is(err, ErrMessageNotFound):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorNotFound)
	case errors.Is(err, ErrInvalidJobStatusTransition), errors.Is(err, ErrJobStateConflict), errors.Is(err, ErrDuplicateJob):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ServiceErrorConflict)
	case errors.Is(err, ErrUnknownJobStatus):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ServiceErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unsupported"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

// MapServiceError exposes the default mapper for outer surfaces that render
// error envelopes.
func MapServiceError(err error) *goerrors.Error {
	return serviceErrorMapper(err)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	// Codes minted outside the forwarder, such as INTERNAL_ERROR from the
	// go-errors fallback, are replaced by the category default.
	if !strings.HasPrefix(strings.TrimSpace(err.TextCode), serviceTextCodePrefix) {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorNotFound
	case goerrors.CategoryConflict:
		return ServiceErrorConflict
	case goerrors.CategoryExternal:
		return ServiceErrorTransientDelivery
	default:
		return ServiceErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError builds a single-field validation envelope. scope
// prefixes the message so command, query and core failures stay apart.
func NewValidationError(scope string, field string, message string) error {
	return goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ServiceErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// NewBadInputError wraps source, when present, as rejected input.
func NewBadInputError(source error, message string) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryBadInput)
	} else {
		// Wrap keeps the category of a rich source.
		err = goerrors.Wrap(source, goerrors.CategoryBadInput, message)
		err.Category = goerrors.CategoryBadInput
	}
	return err.WithCode(http.StatusBadRequest).WithTextCode(ServiceErrorBadInput)
}

// NewDependencyError reports a handler or facade built without its service.
func NewDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ServiceErrorInternal)
}

func validationError(field string, message string) error {
	return NewValidationError("core", field, message)
}
