package controller

import (
	"candidate-collab/internal/dto"
	"candidate-collab/internal/pkg/serverutils"
	"candidate-collab/internal/service"

	"github.com/gofiber/fiber/v2"
)

type INoteController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	ListByCandidate(ctx *fiber.Ctx) error
}

type noteController struct {
	noteService service.INoteService
	auth        fiber.Handler
}

func NewNoteController(noteService service.INoteService, auth fiber.Handler) INoteController {
	return &noteController{
		noteService: noteService,
		auth:        auth,
	}
}

func (c *noteController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/notes")
	h.Use(c.auth)
	h.Post("/", c.Create)
	h.Get("/:candidateId", c.ListByCandidate)
}

// Create is the REST twin of the sendMessage realtime event.
func (c *noteController) Create(ctx *fiber.Ctx) error {
	userID, ok := serverutils.UserID(ctx)
	if !ok {
		return serverutils.Fail(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req dto.CreateNoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Invalid request body")
	}

	note, err := c.noteService.Create(ctx.UserContext(), userID, &req)
	if err != nil {
		return Failure(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(note)
}

func (c *noteController) ListByCandidate(ctx *fiber.Ctx) error {
	notes, err := c.noteService.ListByCandidate(ctx.UserContext(), ctx.Params("candidateId"))
	if err != nil {
		return Failure(ctx, err)
	}
	return ctx.JSON(notes)
}
