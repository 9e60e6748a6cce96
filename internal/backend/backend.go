package backend

import (
	"context"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/contract"
)

type RegisterInput struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Password    string `json:"password" validate:"required,min=6"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries what the auth endpoint returns on success.
type LoginResult struct {
	Token          string
	RefreshToken   string
	Role           string
	ExpirationTime string
	Message        string
}

// BookingRequest is the body of a booking submission. UserID travels in the
// path, not the body.
type BookingRequest struct {
	FullName      string `json:"fullName"`
	UserEmail     string `json:"userEmail"`
	PhoneNumber   string `json:"phoneNumber"`
	Date          string `json:"date"`
	TimeSlot      string `json:"timeSlot"`
	UserID        string `json:"-"`
	AppointmentID string `json:"appointmentId,omitempty"`
}

type BookingConfirmation struct {
	Code    string
	Message string
}

// ProfileUpdate holds the fields sent to the update-profile endpoint. Empty
// fields are left unchanged by the server.
type ProfileUpdate struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Password    string `json:"password,omitempty" validate:"omitempty,min=6"`
}

// Backend is the booking service as seen by the client. Every failed call
// returns an *Error.
type Backend interface {
	Doctor(ctx context.Context) ([]contract.DoctorCheck, error)

	Register(ctx context.Context, in RegisterInput) (*contract.User, error)
	Login(ctx context.Context, in Credentials) (*LoginResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)

	Profile(ctx context.Context, token string) (*contract.User, error)
	UpdateProfile(ctx context.Context, token string, in ProfileUpdate) (*contract.User, error)

	BookedSlots(ctx context.Context, token string) (availability.BookedSlotsMap, error)
	Book(ctx context.Context, token string, req BookingRequest) (*BookingConfirmation, error)
	UserBookings(ctx context.Context, token, userID string) ([]contract.Appointment, error)
	AppointmentByCode(ctx context.Context, token, code string) (*contract.Appointment, error)

	AllAppointments(ctx context.Context, token string) ([]contract.Appointment, error)
	AllUsers(ctx context.Context, token string) ([]contract.User, error)
	UserByID(ctx context.Context, token, userID string) (*contract.User, error)
	DeleteUser(ctx context.Context, token, userID string) error
	DeleteAppointment(ctx context.Context, token, appointmentID string) error
}
