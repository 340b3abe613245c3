package controller

import (
	"candidate-collab/internal/pkg/serverutils"
	"candidate-collab/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IUserController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	GetProfile(ctx *fiber.Ctx) error
}

type userController struct {
	service service.IUserService
	auth    fiber.Handler
}

func NewUserController(service service.IUserService, auth fiber.Handler) IUserController {
	return &userController{service: service, auth: auth}
}

func (c *userController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/users")
	h.Use(c.auth)
	h.Get("/", c.List)
	h.Get("/me", c.GetProfile)
}

// List is the mention directory: id and username of every user.
func (c *userController) List(ctx *fiber.Ctx) error {
	users, err := c.service.Users(ctx.UserContext())
	if err != nil {
		return Failure(ctx, err)
	}
	return ctx.JSON(users)
}

func (c *userController) GetProfile(ctx *fiber.Ctx) error {
	userID, ok := serverutils.UserID(ctx)
	if !ok {
		return serverutils.Fail(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}
	profile, err := c.service.Profile(ctx.UserContext(), userID)
	if err != nil {
		return Failure(ctx, err)
	}
	return ctx.JSON(profile)
}
