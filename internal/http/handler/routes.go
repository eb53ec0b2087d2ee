package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"tumourscan/internal/http/middleware"
	"tumourscan/internal/model"
	"tumourscan/internal/service"
)

// Services are the handler dependencies behind /api.
type Services struct {
	Analysis service.AnalysisService
	MRI      service.MRIService
	Patients service.PatientService
	Auth     service.AuthService
}

// RateLimit throttles the detection endpoints. Zero RequestsPerSecond disables it.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// RegisterRoutes attaches the health probes and the /api routes to app.
// Everything under /api except register and login requires a bearer token.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services, rl RateLimit) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", Register(svc.Auth))
	authGroup.Post("/login", Login(svc.Auth))

	requireAuth := middleware.Authenticate(svc.Auth)
	authGroup.Get("/profile", requireAuth, Profile(svc.Auth))

	throttle := middleware.RateLimit(rl.RequestsPerSecond, rl.Burst)
	analysis := api.Group("/analysis", requireAuth)
	analysis.Post("/tumour-detection", throttle, DetectTumour(svc.Analysis))
	analysis.Post("/biomarker-detection", throttle, DetectBiomarkers(svc.Analysis))
	analysis.Get("/patient/:patientId", GetPatientAnalyses(svc.Analysis))
	analysis.Get("/:id", GetAnalysis(svc.Analysis))

	patients := api.Group("/patients", requireAuth)
	patients.Post("/", CreatePatient(svc.Patients))
	patients.Get("/", ListPatients(svc.Patients))
	patients.Get("/:id", GetPatient(svc.Patients))
	patients.Put("/:id", UpdatePatient(svc.Patients))
	patients.Delete("/:id", middleware.RequireRole(model.RoleDoctor, model.RoleAdmin), DeletePatient(svc.Patients))

	mri := api.Group("/mri", requireAuth)
	mri.Post("/upload", UploadMRI(svc.MRI))
	mri.Get("/patient/:patientId", ListPatientMRI(svc.MRI))
	mri.Get("/:id/download-url", MRIDownloadURL(svc.MRI))
	mri.Get("/:id", GetMRI(svc.MRI))
	mri.Delete("/:id", middleware.RequireRole(model.RoleDoctor, model.RoleAdmin), DeleteMRI(svc.MRI))
}
