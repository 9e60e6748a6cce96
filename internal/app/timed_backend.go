package app

import (
	"context"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/contract"
	"go.uber.org/zap"
)

// timedBackend bounds every call by the command context and records its
// duration under a backend.* phase name.
type timedBackend struct {
	inner backend.Backend
	log   *zap.Logger
}

func (b *timedBackend) Doctor(ctx context.Context) ([]contract.DoctorCheck, error) {
	return timed(ctx, b.log, "backend.doctor", func() ([]contract.DoctorCheck, error) {
		return b.inner.Doctor(ctx)
	})
}

func (b *timedBackend) Register(ctx context.Context, in backend.RegisterInput) (*contract.User, error) {
	return timed(ctx, b.log, "backend.register", func() (*contract.User, error) {
		return b.inner.Register(ctx, in)
	})
}

func (b *timedBackend) Login(ctx context.Context, in backend.Credentials) (*backend.LoginResult, error) {
	return timed(ctx, b.log, "backend.login", func() (*backend.LoginResult, error) {
		return b.inner.Login(ctx, in)
	})
}

func (b *timedBackend) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return timed(ctx, b.log, "backend.refresh_token", func() (string, error) {
		return b.inner.RefreshToken(ctx, refreshToken)
	})
}

func (b *timedBackend) Profile(ctx context.Context, token string) (*contract.User, error) {
	return timed(ctx, b.log, "backend.profile", func() (*contract.User, error) {
		return b.inner.Profile(ctx, token)
	})
}

func (b *timedBackend) UpdateProfile(ctx context.Context, token string, in backend.ProfileUpdate) (*contract.User, error) {
	return timed(ctx, b.log, "backend.update_profile", func() (*contract.User, error) {
		return b.inner.UpdateProfile(ctx, token, in)
	})
}

func (b *timedBackend) BookedSlots(ctx context.Context, token string) (availability.BookedSlotsMap, error) {
	return timed(ctx, b.log, "backend.booked_slots", func() (availability.BookedSlotsMap, error) {
		return b.inner.BookedSlots(ctx, token)
	})
}

func (b *timedBackend) Book(ctx context.Context, token string, req backend.BookingRequest) (*backend.BookingConfirmation, error) {
	return timed(ctx, b.log, "backend.book", func() (*backend.BookingConfirmation, error) {
		return b.inner.Book(ctx, token, req)
	})
}

func (b *timedBackend) UserBookings(ctx context.Context, token, userID string) ([]contract.Appointment, error) {
	return timed(ctx, b.log, "backend.user_bookings", func() ([]contract.Appointment, error) {
		return b.inner.UserBookings(ctx, token, userID)
	})
}

func (b *timedBackend) AppointmentByCode(ctx context.Context, token, code string) (*contract.Appointment, error) {
	return timed(ctx, b.log, "backend.appointment_by_code", func() (*contract.Appointment, error) {
		return b.inner.AppointmentByCode(ctx, token, code)
	})
}

func (b *timedBackend) AllAppointments(ctx context.Context, token string) ([]contract.Appointment, error) {
	return timed(ctx, b.log, "backend.all_appointments", func() ([]contract.Appointment, error) {
		return b.inner.AllAppointments(ctx, token)
	})
}

func (b *timedBackend) AllUsers(ctx context.Context, token string) ([]contract.User, error) {
	return timed(ctx, b.log, "backend.all_users", func() ([]contract.User, error) {
		return b.inner.AllUsers(ctx, token)
	})
}

func (b *timedBackend) UserByID(ctx context.Context, token, userID string) (*contract.User, error) {
	return timed(ctx, b.log, "backend.user_by_id", func() (*contract.User, error) {
		return b.inner.UserByID(ctx, token, userID)
	})
}

func (b *timedBackend) DeleteUser(ctx context.Context, token, userID string) error {
	_, err := timed(ctx, b.log, "backend.delete_user", func() (struct{}, error) {
		return struct{}{}, b.inner.DeleteUser(ctx, token, userID)
	})
	return err
}

func (b *timedBackend) DeleteAppointment(ctx context.Context, token, appointmentID string) error {
	_, err := timed(ctx, b.log, "backend.delete_appointment", func() (struct{}, error) {
		return struct{}{}, b.inner.DeleteAppointment(ctx, token, appointmentID)
	})
	return err
}
