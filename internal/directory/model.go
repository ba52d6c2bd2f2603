package directory

import "errors"

// Doctor is a clinician the scheduler can book against.
type Doctor struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Specialty string `json:"specialty,omitempty"`
}

// Patient is a person appointments are booked for.
type Patient struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	PrimaryCondition string `json:"primary_condition,omitempty"`
}

var (
	ErrDoctorNotFound  = errors.New("directory: doctor not found")
	ErrPatientNotFound = errors.New("directory: patient not found")
)
