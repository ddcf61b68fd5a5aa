package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/apperrors"
	"github.com/cmyui/experimentation/internal/domain"
	"github.com/cmyui/experimentation/internal/dto"
	"github.com/cmyui/experimentation/internal/service"
)

type Handler struct {
	experimentService service.ExperimentServicer
	assignmentService service.AssignmentServicer
	exposureService   service.ExposureServicer
	router            *gin.Engine
	log               *zap.Logger
}

func NewHandler(
	experimentService service.ExperimentServicer,
	assignmentService service.AssignmentServicer,
	exposureService service.ExposureServicer,
	log *zap.Logger,
) *Handler {
	h := &Handler{
		experimentService: experimentService,
		assignmentService: assignmentService,
		exposureService:   exposureService,
		router:            gin.Default(),
		log:               log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)

	v1 := h.router.Group("/v1")
	v1.POST("/experiments", h.createExperiment)
	v1.GET("/experiments", h.listExperiments)
	v1.GET("/experiments/:experiment_id", h.getExperiment)
	v1.PATCH("/experiments/:experiment_id", h.updateExperiment)
	v1.GET("/experiments/:experiment_id/exposure-counts", h.getExposureCounts)
	v1.POST("/assignments", h.fetchAssignments)
	v1.POST("/exposures", h.trackExposure)
}

// statusCodeFor maps a domain error code onto an HTTP status
func statusCodeFor(code string) int {
	switch code {
	case apperrors.CodeExperimentsNotFound,
		apperrors.CodeAssignmentsNotFound:
		return http.StatusNotFound

	case apperrors.CodeExperimentsKeyAlreadyExists,
		apperrors.CodeExposuresAlreadyExists:
		return http.StatusConflict

	case apperrors.CodeExperimentsNeedsHypothesis,
		apperrors.CodeExperimentsNeedsExposureEvent,
		apperrors.CodeExperimentsNeedsVariants,
		apperrors.CodeExperimentsNeedsVariantAllocation,
		apperrors.CodeExperimentsNeedsBucketingSalt,
		apperrors.CodeExperimentsVariantMismatch,
		apperrors.CodeExperimentsInvalidVariantAllocation,
		apperrors.CodeExperimentsInvalidTransition:
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// respondError translates a service error into a coded JSON response.
// Infrastructure detail never reaches the caller beyond the generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		c.JSON(statusCodeFor(domainErr.Code), dto.ErrorResponse{
			Error:   domainErr.Code,
			Message: domainErr.Message,
		})
		return
	}

	h.log.Error("Unexpected error reached the handler", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "internal_error",
		Message: "an unexpected error occurred",
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// createExperiment handles POST /v1/experiments
func (h *Handler) createExperiment(c *gin.Context) {
	var req dto.CreateExperimentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid create experiment request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	experiment, err := h.experimentService.CreateExperiment(
		c.Request.Context(), req.Name, domain.ExperimentType(req.Type), req.Key)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info("Experiment created",
		zap.String("experiment_id", experiment.ExperimentID.String()),
		zap.String("key", experiment.Key))

	c.JSON(http.StatusCreated, experiment)
}

// listExperiments handles GET /v1/experiments
func (h *Handler) listExperiments(c *gin.Context) {
	var req dto.ListExperimentsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.log.Warn("Invalid list experiments request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	var status *domain.ExperimentStatus
	if req.Status != "" {
		s := domain.ExperimentStatus(req.Status)
		status = &s
	}

	experiments, total, err := h.experimentService.ListExperiments(
		c.Request.Context(), status, req.Page, req.PageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListExperimentsResponse{
		Experiments: experiments,
		Page:        req.Page,
		PageSize:    req.PageSize,
		TotalCount:  total,
	})
}

// getExperiment handles GET /v1/experiments/:experiment_id
func (h *Handler) getExperiment(c *gin.Context) {
	id, ok := h.experimentIDParam(c)
	if !ok {
		return
	}

	experiment, err := h.experimentService.GetExperiment(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, experiment)
}

// updateExperiment handles PATCH /v1/experiments/:experiment_id
func (h *Handler) updateExperiment(c *gin.Context) {
	id, ok := h.experimentIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid update experiment request",
			zap.String("experiment_id", id.String()),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	experiment, err := h.experimentService.UpdateExperiment(
		c.Request.Context(), id, updateParamsFrom(req))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info("Experiment updated",
		zap.String("experiment_id", experiment.ExperimentID.String()),
		zap.String("status", string(experiment.Status)))

	c.JSON(http.StatusOK, experiment)
}

// fetchAssignments handles POST /v1/assignments
func (h *Handler) fetchAssignments(c *gin.Context) {
	var req dto.FetchAssignmentsRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid fetch assignments request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	assignments, err := h.assignmentService.FetchAndAssign(c.Request.Context(), req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	data := make([]dto.AssignmentData, 0, len(assignments))
	for _, a := range assignments {
		data = append(data, dto.AssignmentData{
			ExperimentID:  a.Experiment.ExperimentID.String(),
			ExperimentKey: a.Experiment.Key,
			VariantName:   a.VariantName,
			Payload:       variantPayload(a.Experiment, a.VariantName),
		})
	}

	h.log.Info("Assignments resolved",
		zap.String("user_id", req.UserID),
		zap.Int("experiment_count", len(data)))

	c.JSON(http.StatusOK, dto.FetchAssignmentsResponse{
		UserID:      req.UserID,
		Assignments: data,
	})
}

// trackExposure handles POST /v1/exposures
func (h *Handler) trackExposure(c *gin.Context) {
	var req dto.TrackExposureRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid track exposure request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	experimentID, err := uuid.Parse(req.ExperimentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "experiment_id must be a valid uuid",
		})
		return
	}

	exposure, err := h.exposureService.TrackExposure(c.Request.Context(), experimentID, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info("Exposure tracked",
		zap.String("experiment_id", req.ExperimentID),
		zap.String("user_id", req.UserID),
		zap.String("variant_name", exposure.VariantName))

	c.JSON(http.StatusCreated, dto.ExposureResponse{
		ExperimentID: exposure.ExperimentID.String(),
		UserID:       exposure.UserID,
		VariantName:  exposure.VariantName,
		CreatedAt:    exposure.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// getExposureCounts handles GET /v1/experiments/:experiment_id/exposure-counts
func (h *Handler) getExposureCounts(c *gin.Context) {
	id, ok := h.experimentIDParam(c)
	if !ok {
		return
	}

	counts, err := h.exposureService.GetExposureCounts(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	data := make([]dto.VariantCountData, 0, len(counts))
	for _, count := range counts {
		data = append(data, dto.VariantCountData{
			VariantName: count.VariantName,
			TotalCount:  count.TotalCount,
			UniqueCount: count.UniqueCount,
		})
	}

	c.JSON(http.StatusOK, dto.ExposureCountsResponse{
		ExperimentID: id.String(),
		Counts:       data,
	})
}

func (h *Handler) experimentIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("experiment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "experiment_id must be a valid uuid",
		})
		return uuid.Nil, false
	}
	return id, true
}

func updateParamsFrom(req dto.UpdateExperimentRequest) service.UpdateExperimentParams {
	params := service.UpdateExperimentParams{
		Name:              req.Name,
		Key:               req.Key,
		Description:       req.Description,
		Hypothesis:        req.Hypothesis,
		ExposureEvent:     req.ExposureEvent,
		Variants:          req.Variants,
		VariantAllocation: req.VariantAllocation,
		BucketingSalt:     req.BucketingSalt,
	}
	if req.Type != nil {
		t := domain.ExperimentType(*req.Type)
		params.Type = &t
	}
	if req.Status != nil {
		s := domain.ExperimentStatus(*req.Status)
		params.Status = &s
	}
	return params
}

// variantPayload looks up the payload configured for the variant, if any
func variantPayload(experiment *domain.Experiment, variantName string) any {
	for _, v := range experiment.Variants {
		if v.Name == variantName {
			return v.Payload
		}
	}
	return nil
}
