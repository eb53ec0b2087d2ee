package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tumourscan/internal/http/middleware"
	"tumourscan/internal/service"
)

// scanDateLayouts are tried in order for the optional scanDate form field.
var scanDateLayouts = []string{time.RFC3339, time.DateOnly}

func parseScanDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	for _, layout := range scanDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// UploadMRI godoc
// @Summary Upload an MRI scan
// @Tags mri
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param mriImage formData file true "scan file"
// @Param patientId formData string true "patient id"
// @Param scanType formData string true "T1, T2, FLAIR, DWI or Contrast"
// @Param scanDate formData string false "RFC3339 or YYYY-MM-DD"
// @Success 201 {object} model.MRIImage
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 415 {object} errorPayload
// @Router /api/mri/upload [post]
func UploadMRI(svc service.MRIService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("mriImage")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "mriImage file is required")
		}

		scanDate, ok := parseScanDate(c.FormValue("scanDate"))
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_SCAN_DATE", "invalid scanDate")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		in := service.UploadInput{
			Body:        f,
			FileName:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			PatientID:   c.FormValue("patientId"),
			ScanType:    c.FormValue("scanType"),
			ScanDate:    scanDate,
		}
		if u := middleware.CurrentUser(c); u != nil {
			in.UploadedBy = u.ID
		}

		img, err := svc.Upload(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(img)
	}
}

// GetMRI godoc
// @Summary Get an MRI image record
// @Tags mri
// @Produce json
// @Security BearerAuth
// @Param id path string true "image id"
// @Success 200 {object} model.MRIImage
// @Failure 404 {object} errorPayload
// @Router /api/mri/{id} [get]
func GetMRI(svc service.MRIService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		img, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(img)
	}
}

// ListPatientMRI godoc
// @Summary List a patient's MRI images, newest first
// @Tags mri
// @Produce json
// @Security BearerAuth
// @Param patientId path string true "patient id"
// @Success 200 {array} model.MRIImage
// @Router /api/mri/patient/{patientId} [get]
func ListPatientMRI(svc service.MRIService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.ListByPatient(c.UserContext(), c.Params("patientId"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	}
}

// MRIDownloadURL godoc
// @Summary Presigned download link for a stored scan
// @Tags mri
// @Produce json
// @Security BearerAuth
// @Param id path string true "image id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorPayload
// @Router /api/mri/{id}/download-url [get]
func MRIDownloadURL(svc service.MRIService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.DownloadURL(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"url": u})
	}
}

// DeleteMRI godoc
// @Summary Delete an MRI image and its stored object
// @Tags mri
// @Security BearerAuth
// @Param id path string true "image id"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/mri/{id} [delete]
func DeleteMRI(svc service.MRIService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
