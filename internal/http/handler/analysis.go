package handler

import (
	"github.com/gofiber/fiber/v2"

	"tumourscan/internal/http/middleware"
	"tumourscan/internal/service"
)

type tumourDetectionRequest struct {
	MRIImageID string `json:"mriImageId"`
}

type biomarkerDetectionRequest struct {
	AnalysisID string `json:"analysisId"`
}

// DetectTumour godoc
// @Summary Run tumour detection on an uploaded MRI image
// @Tags analysis
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body tumourDetectionRequest true "image to analyse"
// @Success 201 {object} model.AnalysisDetail
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 504 {object} errorPayload
// @Router /api/analysis/tumour-detection [post]
func DetectTumour(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tumourDetectionRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}

		var userID string
		if u := middleware.CurrentUser(c); u != nil {
			userID = u.ID
		}

		detail, err := svc.DetectTumour(c.UserContext(), req.MRIImageID, userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(detail)
	}
}

// DetectBiomarkers godoc
// @Summary Run biomarker detection for an analysis
// @Description Returns 201 with the created biomarkers, or 200 with an empty list when none were found.
// @Tags analysis
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body biomarkerDetectionRequest true "analysis to extend"
// @Success 201 {array} model.Biomarker
// @Success 200 {array} model.Biomarker
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/analysis/biomarker-detection [post]
func DetectBiomarkers(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req biomarkerDetectionRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}

		bms, err := svc.DetectBiomarkers(c.UserContext(), req.AnalysisID)
		if err != nil {
			return respondError(c, err)
		}
		if len(bms) == 0 {
			return c.Status(fiber.StatusOK).JSON(bms)
		}
		return c.Status(fiber.StatusCreated).JSON(bms)
	}
}

// GetAnalysis godoc
// @Summary Get an analysis with image, patient, analyst and biomarkers
// @Tags analysis
// @Produce json
// @Security BearerAuth
// @Param id path string true "analysis id"
// @Success 200 {object} model.AnalysisDetail
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/analysis/{id} [get]
func GetAnalysis(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		detail, err := svc.GetAnalysis(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(detail)
	}
}

// GetPatientAnalyses godoc
// @Summary List a patient's analyses, newest first
// @Tags analysis
// @Produce json
// @Security BearerAuth
// @Param patientId path string true "patient id"
// @Success 200 {array} model.AnalysisDetail
// @Failure 400 {object} errorPayload
// @Router /api/analysis/patient/{patientId} [get]
func GetPatientAnalyses(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.GetPatientAnalyses(c.UserContext(), c.Params("patientId"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	}
}
