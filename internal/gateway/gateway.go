// Package gateway exposes the admission engine over HTTP.
package gateway

import (
	stderrors "errors"
	"regexp"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/p2pclaw/hive/internal/consensus"
	"github.com/p2pclaw/hive/internal/domain"
	apperrors "github.com/p2pclaw/hive/internal/platform/errors"
	"github.com/p2pclaw/hive/internal/warden"
)

var (
	browserUA = regexp.MustCompile(`(?i)Chrome|Safari|Firefox|Edge|Opera`)
	machineUA = regexp.MustCompile(`(?i)bot|agent|crawler|curl|python-requests|node-fetch`)
)

// agentTypeFromUA classifies presence: a standard browser header that is not
// explicitly a bot reads as human, everything else as an automated agent.
func agentTypeFromUA(ua string) domain.AgentType {
	if browserUA.MatchString(ua) && !machineUA.MatchString(ua) {
		return domain.AgentTypeHuman
	}
	return domain.AgentTypeAI
}

// Handler serves the HTTP surface of the admission engine.
type Handler struct {
	engine *consensus.Engine
	warden *warden.Warden
}

// NewHandler builds the HTTP handler set.
func NewHandler(engine *consensus.Engine, gate *warden.Warden) *Handler {
	return &Handler{engine: engine, warden: gate}
}

// App assembles the fiber application with all routes registered.
func (h *Handler) App() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(logger.New())

	app.Post("/papers", h.submitPaper)
	app.Post("/papers/:id/verdicts", h.castVerdict)
	app.Post("/papers/:id/flags", h.flagPaper)
	app.Post("/warden/inspect", h.inspect)
	app.Get("/agents/:id/rank", h.agentRank)
	app.Get("/swarm-status", h.swarmStatus)
	app.Get("/sandbox/missions", h.sandboxMissions)
	return app
}

// errorHandler maps domain error codes onto HTTP statuses.
func errorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) {
		return c.Status(appErr.Code.HTTPStatus()).JSON(fiber.Map{
			"error":    string(appErr.Code),
			"message":  appErr.Message,
			"metadata": appErr.Metadata,
		})
	}
	var fiberErr *fiber.Error
	if stderrors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": "REQUEST_FAILED", "message": fiberErr.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "INTERNAL", "message": "internal error"})
}

type submitPaperRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Author        string `json:"author"`
	AgentID       string `json:"agent_id"`
	Investigation string `json:"investigation"`
	ReferredBy    string `json:"referred_by"`
}

func (h *Handler) submitPaper(c *fiber.Ctx) error {
	var req submitPaperRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.AgentID != "" {
		agentType := agentTypeFromUA(c.Get(fiber.HeaderUserAgent))
		if _, err := h.engine.Contact(c.Context(), req.AgentID, agentType, req.ReferredBy); err != nil {
			return err
		}
	}

	result, err := h.engine.Intake(c.Context(), domain.IntakeInput{
		Title:         req.Title,
		Content:       req.Content,
		Author:        req.Author,
		AgentID:       req.AgentID,
		Investigation: req.Investigation,
	})
	if err != nil {
		return err
	}

	body := fiber.Map{
		"submission_id": result.SubmissionID,
		"status":        string(result.Status),
		"score":         result.Score,
		"breakdown":     result.Breakdown,
	}
	status := fiber.StatusCreated
	if result.RejectReason != "" {
		body["reject_reason"] = result.RejectReason
		status = fiber.StatusOK
	}
	if result.Duplicate != nil {
		body["duplicate_of"] = result.Duplicate.ID
		body["similarity"] = result.Duplicate.Similarity
	}
	return c.Status(status).JSON(body)
}

type verdictRequest struct {
	ValidatorID string `json:"validator_id"`
	Approve     bool   `json:"approve"`
}

func (h *Handler) castVerdict(c *fiber.Ctx) error {
	var req verdictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.engine.CastVerdict(c.Context(), c.Params("id"), req.ValidatorID, req.Approve)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"accepted":  result.Accepted,
		"approvals": result.Approvals,
		"status":    string(result.Status),
	})
}

type flagRequest struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason"`
}

func (h *Handler) flagPaper(c *fiber.Ctx) error {
	var req flagRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.AgentID == "" {
		return apperrors.New(apperrors.CodeAgentEmpty, "agent id is required")
	}

	result, err := h.engine.Flag(c.Context(), c.Params("id"), req.AgentID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"accepted": result.Accepted,
		"flags":    result.Flags,
		"status":   string(result.Status),
	})
}

type inspectRequest struct {
	AgentID string `json:"agent_id"`
	Text    string `json:"text"`
}

func (h *Handler) inspect(c *fiber.Ctx) error {
	var req inspectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.AgentID == "" {
		return apperrors.New(apperrors.CodeAgentEmpty, "agent id is required")
	}

	report, err := h.warden.Inspect(c.Context(), req.AgentID, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"allowed":   report.Allowed,
		"banned":    report.Banned,
		"strikes":   report.Strikes,
		"violation": report.Violation,
		"message":   report.Message,
	})
}

func (h *Handler) agentRank(c *fiber.Ctx) error {
	info, err := h.engine.AgentRank(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"agent_id":      c.Params("id"),
		"rank":          string(info.Tier),
		"weight":        info.Weight,
		"contributions": info.Contributions,
	})
}

func (h *Handler) swarmStatus(c *fiber.Ctx) error {
	status, err := h.engine.Swarm(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"pending":       status.Pending,
		"verified":      status.Verified,
		"rejected":      status.Rejected,
		"online_agents": status.OnlineAgents,
		"total_agents":  status.TotalAgents,
	})
}

func (h *Handler) sandboxMissions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"missions": SampleMissions})
}
