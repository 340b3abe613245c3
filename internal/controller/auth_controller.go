package controller

import (
	"candidate-collab/internal/dto"
	"candidate-collab/internal/pkg/serverutils"
	"candidate-collab/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Signup(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
}

type authController struct {
	service service.IAuthService
}

func NewAuthController(service service.IAuthService) IAuthController {
	return &authController{service: service}
}

// RegisterRoutes mounts the public auth endpoints. None of them take a bearer token.
func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Post("/signup", c.Signup)
	h.Post("/login", c.Login)
	h.Post("/refresh", c.Refresh)
	h.Post("/logout", c.Logout)
}

func (c *authController) Signup(ctx *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := c.service.Signup(ctx.UserContext(), &req)
	if err != nil {
		return Failure(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := c.service.Login(ctx.UserContext(), &req)
	if err != nil {
		return Failure(ctx, err)
	}
	return ctx.JSON(res)
}

func (c *authController) Refresh(ctx *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := c.service.Refresh(ctx.UserContext(), req.RefreshToken)
	if err != nil {
		return Failure(ctx, err)
	}
	return ctx.JSON(res)
}

// Logout revokes the refresh session. Unknown tokens are not an error.
func (c *authController) Logout(ctx *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := c.service.Logout(ctx.UserContext(), req.RefreshToken); err != nil {
		return Failure(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
