package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
	"github.com/jhoicas/efinanceira-signer/internal/domain"
	"github.com/jhoicas/efinanceira-signer/internal/domain/efinanceira"
)

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrStoreDisabled, fiber.StatusServiceUnavailable, "STORE_DISABLED"},

	// Credencial: es configuración del servidor, no del cliente.
	{efinanceira.ErrCredentialNotFound, fiber.StatusServiceUnavailable, "CREDENTIAL_NOT_FOUND"},
	{efinanceira.ErrBadPassword, fiber.StatusServiceUnavailable, "CREDENTIAL_BAD_PASSWORD"},
	{efinanceira.ErrNoPrivateKey, fiber.StatusServiceUnavailable, "CREDENTIAL_NO_PRIVATE_KEY"},
	{efinanceira.ErrUnauthorizedUsage, fiber.StatusServiceUnavailable, "CREDENTIAL_USAGE"},
	{efinanceira.ErrNoCandidates, fiber.StatusServiceUnavailable, "CREDENTIAL_NO_CANDIDATES"},

	{efinanceira.ErrElementNotFound, fiber.StatusUnprocessableEntity, "ELEMENT_NOT_FOUND"},
	{efinanceira.ErrMissingIDAttribute, fiber.StatusUnprocessableEntity, "MISSING_ID"},
	{efinanceira.ErrUnknownEventType, fiber.StatusUnprocessableEntity, "UNKNOWN_EVENT"},
	{efinanceira.ErrAmbiguousEventType, fiber.StatusUnprocessableEntity, "AMBIGUOUS_EVENT"},
	{efinanceira.ErrNoEventsFound, fiber.StatusUnprocessableEntity, "NO_EVENTS"},

	{efinanceira.ErrSHA256Unavailable, fiber.StatusInternalServerError, "SIGNATURE_FAILED"},
	{efinanceira.ErrSignatureComputation, fiber.StatusInternalServerError, "SIGNATURE_FAILED"},
}

// writeError traduce errores de dominio/firma a status + ErrorResponse.
func writeError(c *fiber.Ctx, err error) error {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return c.Status(e.status).JSON(dto.ErrorResponse{Code: e.code, Message: err.Error()})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
