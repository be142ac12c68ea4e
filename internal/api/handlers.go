package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/katakuxiko/docqa/internal/model"
	"github.com/katakuxiko/docqa/internal/util"
)

var errQueryRequired = errors.New("query: field required")

// Answerer answers a user question.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Ingester writes the document at path into the index.
type Ingester interface {
	Ingest(ctx context.Context, path string) (int, error)
}

// ModelLister lists the models served by the language model endpoint.
type ModelLister interface {
	ListModels(ctx context.Context) ([]openai.Model, error)
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	rag       Answerer
	ingester  Ingester
	models    ModelLister
	uploadDir string
	log       *zap.Logger
}

func NewHandler(rag Answerer, ingester Ingester, models ModelLister, uploadDir string, log *zap.Logger) *Handler {
	return &Handler{rag: rag, ingester: ingester, models: models, uploadDir: uploadDir, log: log}
}

// Health reports liveness only; downstream services are not probed.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(model.HealthResponse{Status: "healthy"})
}

// ListModels proxies the model list of the language model endpoint.
func (h *Handler) ListModels(c *fiber.Ctx) error {
	models, err := h.models.ListModels(c.UserContext())
	if err != nil {
		return h.fail(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(models)
}

// IngestPDF stages the uploaded file as temp_<name>, ingests it and removes it.
// A failed ingestion leaves the staged file in place.
func (h *Handler) IngestPDF(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, fiber.StatusUnprocessableEntity, fiber.NewError(fiber.StatusUnprocessableEntity, "file is required (form field: file)"))
	}

	path := filepath.Join(h.uploadDir, util.TempName(file.Filename))
	if err := c.SaveFile(file, path); err != nil {
		return h.fail(c, fiber.StatusInternalServerError, err)
	}
	if _, err := h.ingester.Ingest(c.UserContext(), path); err != nil {
		return h.fail(c, fiber.StatusInternalServerError, err)
	}
	if err := os.Remove(path); err != nil {
		return h.fail(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(model.IngestResponse{Message: "Successfully ingested " + file.Filename})
}

// Query answers {"query": "..."} with {"response": "..."}.
func (h *Handler) Query(c *fiber.Ctx) error {
	var req model.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fiber.StatusUnprocessableEntity, err)
	}
	if req.Query == "" {
		return h.fail(c, fiber.StatusUnprocessableEntity, errQueryRequired)
	}
	answer, err := h.rag.Answer(c.UserContext(), req.Query)
	if err != nil {
		return h.fail(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(model.QueryResponse{Response: answer})
}

func (h *Handler) fail(c *fiber.Ctx, status int, err error) error {
	h.log.Error("request failed",
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err))
	return c.Status(status).JSON(model.ErrorResponse{Detail: err.Error()})
}
