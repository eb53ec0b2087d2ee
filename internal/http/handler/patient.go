package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tumourscan/internal/service"
)

// CreatePatient godoc
// @Summary Register a patient
// @Tags patients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreatePatientInput true "patient"
// @Success 201 {object} model.Patient
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /api/patients [post]
func CreatePatient(svc service.PatientService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.CreatePatientInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}
		p, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// ListPatients godoc
// @Summary List patients, newest first
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Param limit query int false "page size" default(10)
// @Param offset query int false "offset" default(0)
// @Param search query string false "case-insensitive match on first name, last name or patient id"
// @Success 200 {object} service.PatientListResult
// @Failure 400 {object} errorPayload
// @Router /api/patients [get]
func ListPatients(svc service.PatientService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset, c.Query("search"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// GetPatient godoc
// @Summary Get a patient
// @Tags patients
// @Produce json
// @Security BearerAuth
// @Param id path string true "patient id"
// @Success 200 {object} model.Patient
// @Failure 404 {object} errorPayload
// @Router /api/patients/{id} [get]
func GetPatient(svc service.PatientService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	}
}

// UpdatePatient godoc
// @Summary Update a patient
// @Description Fields left out of the body keep their stored values.
// @Tags patients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "patient id"
// @Param body body service.UpdatePatientInput true "fields to change"
// @Success 200 {object} model.Patient
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /api/patients/{id} [put]
func UpdatePatient(svc service.PatientService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.UpdatePatientInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}
		p, err := svc.Update(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	}
}

// DeletePatient godoc
// @Summary Delete a patient with their scans and analyses
// @Tags patients
// @Security BearerAuth
// @Param id path string true "patient id"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/patients/{id} [delete]
func DeletePatient(svc service.PatientService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
