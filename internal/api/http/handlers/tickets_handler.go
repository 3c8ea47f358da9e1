package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/team-tickets/internal/api/dto"
	"github.com/spec-kit/team-tickets/internal/domain"
	"github.com/spec-kit/team-tickets/internal/repository"
	"github.com/spec-kit/team-tickets/internal/service"
	apperrors "github.com/spec-kit/team-tickets/pkg/util"
)

// TicketsHandler exposes ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respondTicket(c, fiber.StatusOK, id, ticket)
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	problems := map[string]any{}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		problems["title"] = "required"
	}
	skills, msg := validateSkills(req.RequiredSkills)
	if msg != "" {
		problems["requiredSkills"] = msg
	}
	deadline, err := time.Parse(domain.DeadlineLayout, req.Deadline)
	if err != nil {
		problems["deadline"] = "must be YYYY-MM-DD"
	}
	priority := domain.TicketPriority(req.Priority)
	if priority == "" {
		priority = domain.TicketPriorityMedium
	} else if !priority.Valid() {
		problems["priority"] = "must be one of low, medium, high"
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("invalid ticket", problems)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.CreateTicketInput{
		Title:          title,
		Description:    req.Description,
		RequiredSkills: skills,
		Deadline:       deadline,
		Priority:       priority,
		AssignedTo:     req.AssignedTo,
		AutoAssign:     req.AutoAssign,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch := service.TicketUpdate{Description: req.Description}
	problems := map[string]any{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			problems["title"] = "must not be empty"
		}
		patch.Title = req.Title
	}
	if req.RequiredSkills != nil {
		skills, msg := validateSkills(req.RequiredSkills)
		if msg != "" {
			problems["requiredSkills"] = msg
		}
		patch.RequiredSkills = skills
	}
	if req.Deadline != nil {
		deadline, err := time.Parse(domain.DeadlineLayout, *req.Deadline)
		if err != nil {
			problems["deadline"] = "must be YYYY-MM-DD"
		}
		patch.Deadline = &deadline
	}
	if req.Priority != nil {
		priority := domain.TicketPriority(*req.Priority)
		if !priority.Valid() {
			problems["priority"] = "must be one of low, medium, high"
		}
		patch.Priority = &priority
	}
	if len(problems) > 0 {
		return apperrors.NewValidationError("invalid ticket update", problems)
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), id, patch)
	if err != nil {
		return err
	}
	return respondTicket(c, fiber.StatusOK, id, ticket)
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	deleted, err := h.service.DeleteTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return ticketNotFound(id)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AssignTicket POST /api/tickets/:id/assign. Without memberId the best
// matching member is chosen; the ticket comes back unchanged when none fits.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.AssignTicket(c.UserContext(), id, req.MemberID)
	if err != nil {
		return err
	}
	return respondTicket(c, fiber.StatusOK, id, ticket)
}

// CompleteTicket POST /api/tickets/:id/complete.
func (h *TicketsHandler) CompleteTicket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.CompleteTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respondTicket(c, fiber.StatusOK, id, ticket)
}

// ReopenTicket POST /api/tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.ReopenTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respondTicket(c, fiber.StatusOK, id, ticket)
}

// ListActivity GET /api/tickets/:id/activity. Works for deleted tickets too.
func (h *TicketsHandler) ListActivity(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListActivity(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewActivityResponses(entries)})
}

func respondTicket(c *fiber.Ctx, status int, id int64, ticket *domain.Ticket) error {
	if ticket == nil {
		return ticketNotFound(id)
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func ticketNotFound(id int64) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id must be a positive integer", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

// validateSkills returns the normalized skills or a message describing why they are invalid.
func validateSkills(raw []string) ([]string, string) {
	skills := make([]string, 0, len(raw))
	for _, s := range raw {
		skills = append(skills, strings.TrimSpace(s))
	}
	skills = domain.NormalizeSkills(skills)
	if len(skills) == 0 {
		return nil, "at least one skill required"
	}
	for _, s := range skills {
		if !domain.IsKnownSkill(s) {
			return nil, "unknown skill " + strconv.Quote(s)
		}
	}
	return skills, ""
}

func parseTicketQuery(c *fiber.Ctx) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			priority := domain.TicketPriority(strings.TrimSpace(part))
			if !priority.Valid() {
				return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": part})
			}
			filter.Priorities = append(filter.Priorities, priority)
		}
	}
	if assigned := c.Query("assignedTo"); assigned != "" {
		id, err := strconv.ParseInt(assigned, 10, 64)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid assignedTo filter", map[string]any{"assignedTo": assigned})
		}
		filter.AssignedTo = &id
	}
	if skill := strings.TrimSpace(c.Query("skill")); skill != "" {
		if !domain.IsKnownSkill(skill) {
			return filter, apperrors.NewValidationError("invalid skill filter", map[string]any{"skill": skill})
		}
		filter.Skill = skill
	}
	return filter, nil
}
