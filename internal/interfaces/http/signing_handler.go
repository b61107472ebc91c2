package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/efinanceira-signer/internal/application/dto"
	"github.com/jhoicas/efinanceira-signer/internal/application/signing"
)

// SigningHandler expone firma, verificación y detección de eventos e-Financeira.
type SigningHandler struct {
	uc *signing.SigningUseCase
}

// NewSigningHandler construye el handler.
func NewSigningHandler(uc *signing.SigningUseCase) *SigningHandler {
	return &SigningHandler{uc: uc}
}

// Sign godoc
// @Summary      Firmar un evento
// @Description  Firma XMLDSig enveloped del evento (target vacío = autodetección).
// @Tags         signing
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SignDocumentRequest  true  "xml, target"
// @Success      200   {object}  dto.SignResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/sign [post]
func (h *SigningHandler) Sign(c *fiber.Ctx) error {
	var in dto.SignDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.SignDocument(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// SignLot godoc
// @Summary      Firmar un lote de eventos
// @Description  Firma cada <evento>; si alguno falla no se firma ninguno.
// @Tags         signing
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SignLotRequest  true  "xml"
// @Success      200   {object}  dto.SignResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/lots/sign [post]
func (h *SigningHandler) SignLot(c *fiber.Ctx) error {
	var in dto.SignLotRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.SignLot(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Verify godoc
// @Summary      Verificar firmas
// @Tags         signing
// @Accept       json
// @Produce      json
// @Param        body  body  dto.VerifyRequest  true  "xml"
// @Success      200   {object}  dto.VerifyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/verify [post]
func (h *SigningHandler) Verify(c *fiber.Ctx) error {
	var in dto.VerifyRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.Verify(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Detect godoc
// @Summary      Detectar tipo de evento
// @Tags         signing
// @Accept       json
// @Produce      json
// @Param        body  body  dto.DetectRequest  true  "xml"
// @Success      200   {object}  dto.DetectResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/detect [post]
func (h *SigningHandler) Detect(c *fiber.Ctx) error {
	var in dto.DetectRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.Detect(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Certificate GET /api/certificate: datos públicos de la credencial configurada.
func (h *SigningHandler) Certificate(c *fiber.Ctx) error {
	resp, err := h.uc.InspectCredential(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Receipts GET /api/receipts/:session_id
func (h *SigningHandler) Receipts(c *fiber.Ctx) error {
	list, err := h.uc.ListReceipts(c.UserContext(), c.Params("session_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// ReceiptsByCertificate GET /api/certificates/:thumbprint/receipts?limit=20&offset=0
func (h *SigningHandler) ReceiptsByCertificate(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	list, err := h.uc.ListReceiptsByCertificate(c.UserContext(), c.Params("thumbprint"), dto.PageRequest{Limit: limit, Offset: offset})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}
