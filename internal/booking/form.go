// Package booking submits appointment bookings and profile updates against
// the booking service and reports typed outcomes.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/backend"
)

var (
	ErrSubmissionInFlight = errors.New("a booking submission is already in progress")
	ErrPastDate           = errors.New("date is in the past")
)

type State string

const (
	StateIdle                   State = "idle"
	StateValidating             State = "validating"
	StateSubmitting             State = "submitting"
	StateRefreshingAvailability State = "refreshing_availability"
)

// Client is the part of the booking service a Form needs.
type Client interface {
	BookedSlots(ctx context.Context, token string) (availability.BookedSlotsMap, error)
	Book(ctx context.Context, token string, req backend.BookingRequest) (*backend.BookingConfirmation, error)
}

type Contact struct {
	FullName    string `json:"fullName" validate:"required"`
	Email       string `json:"userEmail" validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required,phone_number"`
}

type submission struct {
	Date     string `json:"date" validate:"required,date_key"`
	TimeSlot string `json:"timeSlot" validate:"required,time_slot"`
	UserID   string `json:"userId" validate:"required"`
}

type FormOptions struct {
	Token  string
	UserID string
	// ProfileBound marks a form whose contact details come from the signed-in
	// profile, so missing contact fields are not a validation failure.
	ProfileBound bool
	Contact      Contact
	Location     *time.Location
	Now          func() time.Time
	Logger       *zap.Logger
}

// Result is the outcome of one Submit. Exactly one of ConfirmationCode-based
// success or Err is meaningful.
type Result struct {
	ConfirmationCode string                 `json:"confirmation_code,omitempty"`
	Message          string                 `json:"message"`
	Request          backend.BookingRequest `json:"request"`
	Kind             backend.Kind           `json:"kind,omitempty"`
	Err              error                  `json:"-"`
	Warning          string                 `json:"warning,omitempty"`
}

func (r Result) OK() bool { return r.Err == nil }

// Form is a single booking form: the booked-slots snapshot, the date/slot
// selection, and the contact details of the user booking.
type Form struct {
	client Client
	log    *zap.Logger
	now    func() time.Time
	loc    *time.Location

	mu            sync.Mutex
	state         State
	token         string
	userID        string
	profileBound  bool
	snapshot      availability.BookedSlotsMap
	sel           availability.Selection
	contact       Contact
	boundContact  Contact
	appointmentID string
}

func NewForm(client Client, opts FormOptions) *Form {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	f := &Form{
		client:       client,
		log:          log,
		now:          now,
		loc:          loc,
		state:        StateIdle,
		token:        opts.Token,
		userID:       strings.TrimSpace(opts.UserID),
		profileBound: opts.ProfileBound,
		snapshot:     availability.BookedSlotsMap{},
		contact:      opts.Contact,
	}
	if opts.ProfileBound {
		f.boundContact = opts.Contact
	}
	return f
}

// Load fetches the booked-slots snapshot the form filters against.
func (f *Form) Load(ctx context.Context) error {
	f.mu.Lock()
	token := f.token
	f.mu.Unlock()
	m, err := f.client.BookedSlots(ctx, token)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.snapshot = m
	f.mu.Unlock()
	return nil
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Snapshot returns the current booked-slots snapshot. Callers must not
// modify it.
func (f *Form) Snapshot() availability.BookedSlotsMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *Form) Selection() (availability.DateKey, availability.SlotKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel.Date(), f.sel.Slot()
}

func (f *Form) Contact() Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contact
}

// Today is the first selectable date.
func (f *Form) Today() availability.DateKey {
	return availability.NormalizeDate(f.now().In(f.loc))
}

// SelectDate picks a date and clears any chosen slot. Past and fully booked
// dates are refused, the same dates a date picker would disable. A refused
// date still clears the previous selection.
func (f *Form) SelectDate(d availability.DateKey) (availability.SlotSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sel.Reset()
	key, err := availability.ParseDateKey(string(d))
	if err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "date", Message: "must be a date in YYYY-MM-DD form"}}}
	}
	if key < f.Today() {
		return nil, fmt.Errorf("%w: %s", ErrPastDate, key)
	}
	if availability.IsDateFullyBooked(f.snapshot, key) {
		return nil, fmt.Errorf("%w: %s", availability.ErrDateFullyBooked, key)
	}
	return f.sel.SelectDate(f.snapshot, key), nil
}

// SelectTime picks the local calendar day of t.
func (f *Form) SelectTime(t time.Time) (availability.SlotSet, error) {
	return f.SelectDate(availability.NormalizeDate(t.In(f.loc)))
}

func (f *Form) SelectSlot(s availability.SlotKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel.SelectSlot(f.snapshot, s)
}

func (f *Form) SetContact(c Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contact = c
}

func (f *Form) SetAppointmentID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointmentID = strings.TrimSpace(id)
}

// Request builds the request the next Submit would send, validating it
// without any network call.
func (f *Form) Request() (backend.BookingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buildRequest()
}

func (f *Form) buildRequest() (backend.BookingRequest, error) {
	sub := submission{
		Date:     string(f.sel.Date()),
		TimeSlot: string(f.sel.Slot()),
		UserID:   f.userID,
	}
	contact := Contact{
		FullName:    strings.TrimSpace(f.contact.FullName),
		Email:       strings.TrimSpace(f.contact.Email),
		PhoneNumber: strings.TrimSpace(f.contact.PhoneNumber),
	}
	var contactErr error
	if !f.profileBound {
		contactErr = ValidateStruct(contact)
	}
	if err := mergeValidation(ValidateStruct(sub), contactErr); err != nil {
		return backend.BookingRequest{}, err
	}
	date, err := availability.ParseDateKey(sub.Date)
	if err != nil {
		return backend.BookingRequest{}, &ValidationError{Fields: []FieldError{{Field: "date", Message: err.Error()}}}
	}
	return backend.BookingRequest{
		FullName:      contact.FullName,
		UserEmail:     contact.Email,
		PhoneNumber:   contact.PhoneNumber,
		Date:          string(date),
		TimeSlot:      sub.TimeSlot,
		UserID:        sub.UserID,
		AppointmentID: f.appointmentID,
	}, nil
}

// Submit validates the form and posts it once. On success the booked-slots
// snapshot is fetched once and the form resets. Failures are classified and
// never retried.
func (f *Form) Submit(ctx context.Context) Result {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return Result{Kind: backend.KindValidation, Err: ErrSubmissionInFlight, Message: ErrSubmissionInFlight.Error()}
	}
	f.state = StateValidating
	req, err := f.buildRequest()
	if err != nil {
		f.state = StateIdle
		f.mu.Unlock()
		return Result{Kind: backend.KindValidation, Err: err, Message: err.Error()}
	}
	f.state = StateSubmitting
	token := f.token
	f.mu.Unlock()

	f.log.Debug("submitting booking",
		zap.String("date", req.Date),
		zap.String("slot", req.TimeSlot),
		zap.String("user_id", req.UserID),
	)
	conf, err := f.client.Book(ctx, token, req)
	if err != nil {
		f.setState(StateIdle)
		kind := backend.KindOf(err)
		if kind == "" {
			kind = backend.KindServer
		}
		return Result{
			Request: req,
			Kind:    kind,
			Err:     err,
			Message: backend.MessageOf(err, backend.FallbackMessage(kind)),
		}
	}

	res := Result{Request: req, ConfirmationCode: conf.Code, Message: conf.Message}
	if strings.TrimSpace(res.Message) == "" {
		res.Message = "booking confirmed"
	}

	f.setState(StateRefreshingAvailability)
	fresh, refreshErr := f.client.BookedSlots(ctx, token)

	f.mu.Lock()
	defer f.mu.Unlock()
	if refreshErr != nil {
		res.Warning = "booking confirmed but availability could not be refreshed: " + backend.MessageOf(refreshErr, refreshErr.Error())
		f.log.Warn("availability refresh failed after booking", zap.Error(refreshErr))
	} else {
		f.snapshot = fresh
	}
	f.sel.Reset()
	f.contact = f.boundContact
	f.appointmentID = ""
	f.state = StateIdle
	return res
}

func (f *Form) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
