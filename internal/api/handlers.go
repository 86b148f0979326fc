package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"readiness-workers/internal/common/errors"
	"readiness-workers/internal/common/validation"
	"readiness-workers/internal/matching"
	"readiness-workers/internal/readiness"
	"readiness-workers/internal/readiness/store"
)

const maxGapsLimit = 20

var projectionSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["currentScore"],
  "properties": {
    "currentScore": {"type": "number", "minimum": 0, "maximum": 100},
    "recommendation": {
      "type": "object",
      "required": ["title"],
      "properties": {
        "title": {"type": "string", "minLength": 1},
        "severity": {"enum": ["high", "medium", "low", ""]},
        "impactPoints": {"type": "number", "minimum": 0}
      }
    },
    "gaps": {"type": "array", "minItems": 1}
  }
}`)

type projectionRequest struct {
	CurrentScore   float64 `json:"currentScore"`
	Recommendation *struct {
		Title        string             `json:"title"`
		Severity     readiness.Severity `json:"severity"`
		ImpactPoints *float64           `json:"impactPoints"`
	} `json:"recommendation"`
	Gaps []readiness.GapItem `json:"gaps"`
}

func (h *handlers) getReadiness(c *gin.Context) {
	orgID := c.Query("org_id")
	if orgID == "" {
		h.fail(c, errors.NewInvalidInputError("org_id is required"))
		return
	}
	maxGaps := h.deps.DefaultMaxGaps
	if raw := c.Query("max_gaps"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 || n > maxGapsLimit {
			h.fail(c, errors.NewInvalidInputError("max_gaps must be an integer between 0 and 20"))
			return
		}
		maxGaps = n
	}

	report, err := h.deps.Reports.LoadReport(c.Request.Context(), orgID, maxGaps)
	if err != nil {
		h.fail(c, readinessError(orgID, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"orgId": orgID, "readiness": report})
}

func (h *handlers) postProjection(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, errors.NewInvalidInputError("request body could not be read"))
		return
	}
	if result := projectionSchema.ValidateJSON(body); !result.Valid {
		h.fail(c, errors.NewInvalidInputError(result.Error()))
		return
	}

	var req projectionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.fail(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	var candidates []readiness.Candidate
	if r := req.Recommendation; r != nil {
		candidates = append(candidates, readiness.Candidate{Title: r.Title, Severity: r.Severity, ImpactPoints: r.ImpactPoints})
	} else {
		for _, g := range req.Gaps {
			candidates = append(candidates, readiness.CandidateFromGap(g))
		}
	}

	projection, ok := readiness.Project(req.CurrentScore, candidates)
	if !ok {
		h.fail(c, errors.NewInvalidInputError("a recommendation or at least one gap is required"))
		return
	}
	c.JSON(http.StatusOK, projection)
}

// getMatches always answers 200: failures are reported in the status body.
func (h *handlers) getMatches(c *gin.Context) {
	orgID := c.Query("org_id")
	if orgID == "" {
		h.fail(c, errors.NewInvalidInputError("org_id is required"))
		return
	}

	resp := h.deps.Matches.GetMatchStatus(c.Request.Context(), orgID, matching.Status(c.Query("known_status")))
	if resp.Status == matching.StatusReady {
		c.Header("Cache-Control", "private, max-age=60")
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) getBootstrap(c *gin.Context) {
	orgID := c.Query("org_id")
	if orgID == "" {
		h.fail(c, errors.NewInvalidInputError("org_id is required"))
		return
	}
	force := false
	if raw := c.Query("force"); raw != "" {
		b, err := cast.ToBoolE(raw)
		if err != nil {
			h.fail(c, errors.NewInvalidInputError("force must be a boolean"))
			return
		}
		force = b
	}

	snap, err := h.deps.Bootstrap.Load(c.Request.Context(), orgID, force)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func readinessError(orgID string, err error) error {
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewReadinessNotFoundError(orgID)
	case stderrors.Is(err, readiness.ErrInvalidJSON), stderrors.Is(err, readiness.ErrNotObject):
		return errors.NewRubricParseFailedError(err)
	default:
		return errors.NewReadinessLoadFailedError(orgID, err)
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	stdErr := errors.NormalizeError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(httpStatus(stdErr.Code), gin.H{"error": stdErr})
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeReadinessNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRubricParseFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodePipelineUnreachable:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
