package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/team-tickets/internal/api/dto"
	"github.com/spec-kit/team-tickets/internal/service"
	apperrors "github.com/spec-kit/team-tickets/pkg/util"
)

// MembersHandler serves the read-only team roster, skills and stats.
type MembersHandler struct {
	service *service.TicketService
}

// NewMembersHandler constructs handler.
func NewMembersHandler(ticketService *service.TicketService) *MembersHandler {
	return &MembersHandler{service: ticketService}
}

// ListMembers GET /api/members.
func (h *MembersHandler) ListMembers(c *fiber.Ctx) error {
	members, err := h.service.ListMembers(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMemberResponses(members)})
}

// GetMember GET /api/members/:id.
func (h *MembersHandler) GetMember(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	member, err := h.service.GetMember(c.UserContext(), id)
	if err != nil {
		return err
	}
	if member == nil {
		return apperrors.NewNotFound("member", map[string]any{"id": id})
	}
	return c.JSON(fiber.Map{"data": dto.NewMemberResponse(member)})
}

// ListSkills GET /api/skills.
func (h *MembersHandler) ListSkills(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.service.ListSkills()})
}

// Stats GET /api/stats.
func (h *MembersHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
