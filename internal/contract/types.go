package contract

import "time"

const SchemaVersion = "v1"

type ErrorCode string

const (
	ErrGeneric            ErrorCode = "GENERIC_FAILURE"
	ErrInvalidUsage       ErrorCode = "INVALID_USAGE"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrConflict           ErrorCode = "CONFLICT"
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
)

type ErrorEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Error         ErrorBody      `json:"error"`
	Meta          map[string]any `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

type SuccessEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Command       string         `json:"command"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Data          any            `json:"data"`
	Meta          map[string]any `json:"meta"`
	Warnings      []string       `json:"warnings"`
}

// Response is the envelope every backend endpoint answers with. Only the
// fields relevant to the calling endpoint are populated.
type Response struct {
	StatusCode              int           `json:"statusCode"`
	Message                 string        `json:"message"`
	Token                   string        `json:"token,omitempty"`
	RefreshToken            string        `json:"refreshToken,omitempty"`
	Role                    string        `json:"role,omitempty"`
	ExpirationTime          string        `json:"expirationTime,omitempty"`
	ConfirmationCode        string        `json:"confirmationCode,omitempty"`
	BookingConfirmationCode string        `json:"bookingConfirmationCode,omitempty"`
	User                    *User         `json:"user,omitempty"`
	Appointment             *Appointment  `json:"appointment,omitempty"`
	Data                    *Appointment  `json:"data,omitempty"`
	UserList                []User        `json:"userList,omitempty"`
	AppointmentList         []Appointment `json:"appointmentList,omitempty"`
	BookingList             []Appointment `json:"bookingList,omitempty"`
}

type User struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	PhoneNumber string        `json:"phoneNumber"`
	Role        string        `json:"role"`
	Bookings    []Appointment `json:"bookings,omitempty"`
}

type Appointment struct {
	ID               string `json:"id"`
	UserID           string `json:"userId,omitempty"`
	FullName         string `json:"fullName,omitempty"`
	UserEmail        string `json:"userEmail"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
	Date             string `json:"date"`
	TimeSlot         string `json:"timeSlot"`
	Booked           bool   `json:"booked"`
	ConfirmationCode string `json:"confirmationCode,omitempty"`
}

type Confirmation struct {
	Code    string `json:"confirmation_code"`
	Message string `json:"message,omitempty"`
	Date    string `json:"date"`
	Slot    string `json:"slot"`
	UserID  string `json:"user_id"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
