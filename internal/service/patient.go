package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"tumourscan/internal/model"
	"tumourscan/internal/repository"
	"tumourscan/internal/storage"
)

// CreatePatientInput is the payload for registering a patient.
type CreatePatientInput struct {
	PatientCode    string    `json:"patientId"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	DateOfBirth    time.Time `json:"dateOfBirth"`
	Gender         string    `json:"gender"`
	ContactNumber  string    `json:"contactNumber"`
	Email          string    `json:"email"`
	AssignedDoctor string    `json:"assignedDoctor"`

	Address        *model.Address           `json:"address"`
	MedicalHistory []model.MedicalCondition `json:"medicalHistory"`
	GeneticData    *model.GeneticData       `json:"geneticData"`
}

func (in CreatePatientInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.PatientCode, validation.Required, validation.Length(1, 64)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.DateOfBirth, validation.Required, validation.Max(time.Now())),
		validation.Field(&in.Gender, validation.Required, validation.In("Male", "Female", "Other")),
		validation.Field(&in.Email, is.EmailFormat),
		validation.Field(&in.AssignedDoctor, is.UUID),
		validation.Field(&in.MedicalHistory, validation.By(validateHistory)),
	)
}

// UpdatePatientInput carries a partial update; nil fields are left unchanged.
type UpdatePatientInput struct {
	PatientCode    *string    `json:"patientId"`
	FirstName      *string    `json:"firstName"`
	LastName       *string    `json:"lastName"`
	DateOfBirth    *time.Time `json:"dateOfBirth"`
	Gender         *string    `json:"gender"`
	ContactNumber  *string    `json:"contactNumber"`
	Email          *string    `json:"email"`
	Status         *string    `json:"status"`
	AssignedDoctor *string    `json:"assignedDoctor"`

	Address        *model.Address           `json:"address"`
	MedicalHistory []model.MedicalCondition `json:"medicalHistory"`
	GeneticData    *model.GeneticData       `json:"geneticData"`
}

func (in UpdatePatientInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.PatientCode, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&in.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&in.DateOfBirth, validation.NilOrNotEmpty, validation.Max(time.Now())),
		validation.Field(&in.Gender, validation.NilOrNotEmpty, validation.In("Male", "Female", "Other")),
		validation.Field(&in.Email, is.EmailFormat),
		validation.Field(&in.Status, validation.NilOrNotEmpty, validation.In("Active", "Inactive", "Deceased")),
		validation.Field(&in.AssignedDoctor, is.UUID),
		validation.Field(&in.MedicalHistory, validation.By(validateHistory)),
	)
}

func validateHistory(value any) error {
	history, _ := value.([]model.MedicalCondition)
	for i, c := range history {
		if strings.TrimSpace(c.Condition) == "" {
			return fmt.Errorf("entry %d: condition is required", i)
		}
	}
	return nil
}

// PatientListResult is the service-level DTO for paginated patients.
type PatientListResult struct {
	Items []model.Patient `json:"data"`
	Total int             `json:"total"`
}

type PatientService interface {
	Create(ctx context.Context, in CreatePatientInput) (*model.Patient, error)
	Get(ctx context.Context, id string) (*model.Patient, error)
	// Update applies a partial update and returns the stored patient.
	Update(ctx context.Context, id string, in UpdatePatientInput) (*model.Patient, error)
	// Delete removes the patient, its scans from object storage and, by cascade, its records.
	Delete(ctx context.Context, id string) error
	// List returns patients newest first using limit/offset and a total count.
	// A non-empty search filters by first name, last name or patient code.
	List(ctx context.Context, limit, offset int, search string) (*PatientListResult, error)
}

type patientService struct {
	repo   repository.PatientRepository
	images repository.MRIImageRepository
	store  storage.ScanStore
	now    func() time.Time
}

func NewPatientService(repo repository.PatientRepository, images repository.MRIImageRepository, store storage.ScanStore) PatientService {
	return &patientService{
		repo:   repo,
		images: images,
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *patientService) Create(ctx context.Context, in CreatePatientInput) (*model.Patient, error) {
	in.PatientCode = strings.TrimSpace(in.PatientCode)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Patient{
		ID:             uuid.NewString(),
		PatientCode:    in.PatientCode,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		DateOfBirth:    in.DateOfBirth,
		Gender:         model.Gender(in.Gender),
		ContactNumber:  in.ContactNumber,
		Email:          in.Email,
		Status:         model.PatientActive,
		AssignedDoctor: in.AssignedDoctor,
		Address:        in.Address,
		MedicalHistory: in.MedicalHistory,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.GeneticData != nil {
		p.GeneticData = *in.GeneticData
	}
	stored, err := s.repo.Create(ctx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrPatientCodeTaken
		}
		return nil, fmt.Errorf("save patient: %w", err)
	}
	return stored, nil
}

func (s *patientService) Get(ctx context.Context, id string) (*model.Patient, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *patientService) Update(ctx context.Context, id string, in UpdatePatientInput) (*model.Patient, error) {
	if in.PatientCode != nil {
		code := strings.TrimSpace(*in.PatientCode)
		in.PatientCode = &code
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.applyTo(p)
	p.UpdatedAt = s.now()

	stored, err := s.repo.Update(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrPatientNotFound
		case isUniqueViolation(err):
			return nil, ErrPatientCodeTaken
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return stored, nil
}

func (in UpdatePatientInput) applyTo(p *model.Patient) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&p.PatientCode, in.PatientCode)
	setString(&p.FirstName, in.FirstName)
	setString(&p.LastName, in.LastName)
	setString(&p.ContactNumber, in.ContactNumber)
	setString(&p.Email, in.Email)
	setString(&p.AssignedDoctor, in.AssignedDoctor)
	if in.DateOfBirth != nil {
		p.DateOfBirth = *in.DateOfBirth
	}
	if in.Gender != nil {
		p.Gender = model.Gender(*in.Gender)
	}
	if in.Status != nil {
		p.Status = model.PatientStatus(*in.Status)
	}
	if in.Address != nil {
		p.Address = in.Address
	}
	if in.MedicalHistory != nil {
		p.MedicalHistory = in.MedicalHistory
	}
	if in.GeneticData != nil {
		p.GeneticData = *in.GeneticData
	}
}

func (s *patientService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	images, err := s.images.ListByPatient(ctx, id)
	if err != nil {
		return fmt.Errorf("list patient images: %w", err)
	}
	// Objects first: a failure leaves the rows pointing at what is still stored.
	for _, img := range images {
		if err := s.store.RemoveScan(ctx, img.StorageKey); err != nil {
			return fmt.Errorf("delete storage %s: %w", img.ID, err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

func (s *patientService) List(ctx context.Context, limit, offset int, search string) (*PatientListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{
		Limit:  limit,
		Offset: offset,
		Search: strings.TrimSpace(search),
	})
	if err != nil {
		return nil, err
	}
	return &PatientListResult{Items: res.Items, Total: res.Total}, nil
}
