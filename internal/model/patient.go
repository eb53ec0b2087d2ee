package model

import "time"

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

type PatientStatus string

const (
	PatientActive   PatientStatus = "Active"
	PatientInactive PatientStatus = "Inactive"
	PatientDeceased PatientStatus = "Deceased"
)

// Address is a patient's postal address.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// MedicalCondition is one entry of a patient's history.
type MedicalCondition struct {
	Condition     string     `json:"condition"`
	DiagnosisDate *time.Time `json:"diagnosisDate,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// GeneticData summarises sequencing results.
type GeneticData struct {
	Sequenced   bool     `json:"sequenced"`
	Mutations   []string `json:"mutations"`
	RiskFactors []string `json:"riskFactors"`
}

// Patient owns MRI images and analyses.
// PatientCode is the hospital-facing identifier; ID is the internal UUID.
type Patient struct {
	ID             string             `json:"id"`
	PatientCode    string             `json:"patientId"`
	FirstName      string             `json:"firstName"`
	LastName       string             `json:"lastName"`
	DateOfBirth    time.Time          `json:"dateOfBirth"`
	Gender         Gender             `json:"gender"`
	ContactNumber  string             `json:"contactNumber,omitempty"`
	Email          string             `json:"email,omitempty"`
	Address        *Address           `json:"address,omitempty"`
	MedicalHistory []MedicalCondition `json:"medicalHistory"`
	GeneticData    GeneticData        `json:"geneticData"`
	Status         PatientStatus      `json:"status"`
	AssignedDoctor string             `json:"assignedDoctor,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// PatientSummary is the joined view of a patient embedded in analyses.
type PatientSummary struct {
	ID          string `json:"id"`
	PatientCode string `json:"patientId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}
