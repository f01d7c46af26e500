package app

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc/codes"

	perrors "github.com/emirks/werewolf-arena/internal/platform/errors"
	"github.com/emirks/werewolf-arena/internal/platform/grpc/pagination"
)

var sessionPageSizes = pagination.PageSizeConfig{Default: 20, Max: 100}

func (s *Server) registerRoutes() {
	s.fiberApp.Post("/sessions", s.handleCreateSession)
	s.fiberApp.Get("/sessions", s.handleListSessions)
	s.fiberApp.Get("/sessions/:id", s.handleGetSession)
	s.fiberApp.Post("/sessions/:id/resume", s.handleResumeSession)
	s.fiberApp.Post("/sessions/:id/abort", s.handleAbortSession)
	s.hub.Register(s.fiberApp)
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var input CreateSessionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	sessionID, err := s.sessions.Create(c.Context(), input)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session_id": sessionID})
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	limit := pagination.ClampPageSize(int32(c.QueryInt("page_size")), sessionPageSizes)
	sessions, err := s.sessions.List(c.Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]fiber.Map, 0, len(sessions))
	for _, info := range sessions {
		items = append(items, fiber.Map{
			"session_id": info.SessionID,
			"winner":     string(info.Winner),
			"rounds":     info.Rounds,
			"running":    s.sessions.Running(info.SessionID),
			"saved_at":   info.SavedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"sessions": items})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	checkpoint, err := s.sessions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"state":    checkpoint.State,
		"logs":     checkpoint.Logs,
		"running":  s.sessions.Running(checkpoint.State.SessionID),
		"saved_at": checkpoint.SavedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleResumeSession(c *fiber.Ctx) error {
	var input struct {
		Players []PlayerSpec `json:"players"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.sessions.Resume(c.Context(), c.Params("id"), input.Players); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"session_id": c.Params("id")})
}

func (s *Server) handleAbortSession(c *fiber.Ctx) error {
	if err := s.sessions.Abort(c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"session_id": c.Params("id")})
}

// writeError renders a coded domain error as an HTTP status and JSON body.
func writeError(c *fiber.Ctx, err error) error {
	var domainErr *perrors.Error
	if !errors.As(err, &domainErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(httpStatus(domainErr.Code.GRPCCode())).JSON(fiber.Map{
		"error": domainErr.Message,
		"code":  string(domainErr.Code),
	})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return fiber.StatusBadRequest
	case codes.NotFound:
		return fiber.StatusNotFound
	case codes.AlreadyExists, codes.FailedPrecondition:
		return fiber.StatusConflict
	case codes.DeadlineExceeded:
		return fiber.StatusGatewayTimeout
	case codes.Unavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
