package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/contract"
)

const (
	RequestIDHeader = "X-Request-ID"
	maxBodyBytes    = 4 << 20
)

type HTTPOptions struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
	// RateLimit caps outbound requests per second. Zero disables throttling.
	RateLimit float64
	Burst     int
}

// HTTPBackend talks to the booking REST service.
type HTTPBackend struct {
	base    *url.URL
	client  *http.Client
	log     *zap.Logger
	limiter *rate.Limiter
}

func NewHTTPBackend(opts HTTPOptions) (*HTTPBackend, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("api url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", opts.BaseURL)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &HTTPBackend{base: base, client: client, log: log, limiter: limiter}, nil
}

func (b *HTTPBackend) BaseURL() string { return b.base.String() }

type request struct {
	op     string
	method string
	path   string
	token  string
	body   any
	login  bool
}

// send performs one HTTP exchange and returns the raw success body.
func (b *HTTPBackend) send(ctx context.Context, r request) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, transportError(r.op, err)
	}
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Op: r.op, Message: "could not encode request", Err: err}
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, b.base.String()+r.path, body)
	if err != nil {
		return nil, transportError(r.op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	started := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("backend request failed",
			zap.String("op", r.op),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, transportError(r.op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(r.op, err)
	}
	b.log.Debug("backend request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode >= http.StatusBadRequest {
		kind := classifyStatus(resp.StatusCode, r.login)
		return nil, &Error{
			Kind:    kind,
			Status:  resp.StatusCode,
			Op:      r.op,
			Message: messageFromBody(raw, FallbackMessage(kind)),
			Err:     fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}
	return raw, nil
}

// call performs an exchange whose success body is the standard envelope. The
// service also reports failures through the envelope's statusCode, so a 2xx
// whose statusCode is an error status is classified the same way.
func (b *HTTPBackend) call(ctx context.Context, r request) (*contract.Response, error) {
	raw, err := b.send(ctx, r)
	if err != nil {
		return nil, err
	}
	var out contract.Response
	if len(bytes.TrimSpace(raw)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: KindTransport, Op: r.op, Message: "unexpected response from booking service", Err: err}
	}
	if out.StatusCode >= http.StatusBadRequest {
		kind := classifyStatus(out.StatusCode, r.login)
		msg := strings.TrimSpace(out.Message)
		if msg == "" {
			msg = FallbackMessage(kind)
		}
		return nil, &Error{Kind: kind, Status: out.StatusCode, Op: r.op, Message: msg, Err: fmt.Errorf("status %d", out.StatusCode)}
	}
	return &out, nil
}

func messageFromBody(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if m := strings.TrimSpace(body.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(body.Error); m != "" {
			return m
		}
	}
	return fallback
}

func (b *HTTPBackend) Doctor(ctx context.Context) ([]contract.DoctorCheck, error) {
	checks := []contract.DoctorCheck{
		{Name: "api_url", Status: "ok", Message: b.base.String()},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base.String()+"/", nil)
	if err != nil {
		checks = append(checks, contract.DoctorCheck{Name: "api_reachable", Status: "fail", Message: err.Error()})
		return checks, transportError("doctor", err)
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	resp, err := b.client.Do(req)
	if err != nil {
		checks = append(checks, contract.DoctorCheck{Name: "api_reachable", Status: "fail", Message: err.Error()})
		return checks, transportError("doctor", err)
	}
	_ = resp.Body.Close()
	status := "ok"
	if resp.StatusCode >= http.StatusInternalServerError {
		status = "warn"
	}
	checks = append(checks, contract.DoctorCheck{
		Name:    "api_reachable",
		Status:  status,
		Message: fmt.Sprintf("booking service answered HTTP %d", resp.StatusCode),
	})
	return checks, nil
}

func (b *HTTPBackend) Register(ctx context.Context, in RegisterInput) (*contract.User, error) {
	resp, err := b.call(ctx, request{op: "register", method: http.MethodPost, path: "/auth/register", body: in})
	if err != nil {
		return nil, err
	}
	if resp.User != nil {
		return resp.User, nil
	}
	return &contract.User{Name: in.Name, Email: in.Email, PhoneNumber: in.PhoneNumber}, nil
}

func (b *HTTPBackend) Login(ctx context.Context, in Credentials) (*LoginResult, error) {
	resp, err := b.call(ctx, request{op: "login", method: http.MethodPost, path: "/auth/login", body: in, login: true})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return nil, &Error{Kind: KindCredentials, Status: resp.StatusCode, Op: "login", Message: messageOr(resp.Message, FallbackMessage(KindCredentials))}
	}
	return &LoginResult{
		Token:          resp.Token,
		RefreshToken:   resp.RefreshToken,
		Role:           resp.Role,
		ExpirationTime: resp.ExpirationTime,
		Message:        resp.Message,
	}, nil
}

func (b *HTTPBackend) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	resp, err := b.call(ctx, request{
		op:     "refresh token",
		method: http.MethodPost,
		path:   "/auth/refresh-token",
		body:   map[string]string{"token": refreshToken},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return "", &Error{Kind: KindAuthorization, Op: "refresh token", Message: "token refresh returned no token"}
	}
	return resp.Token, nil
}

func (b *HTTPBackend) Profile(ctx context.Context, token string) (*contract.User, error) {
	resp, err := b.call(ctx, request{op: "get profile", method: http.MethodGet, path: "/users/get-logged-in-profile-info", token: token})
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &Error{Kind: KindServer, Op: "get profile", Message: "profile response carried no user"}
	}
	return resp.User, nil
}

func (b *HTTPBackend) UpdateProfile(ctx context.Context, token string, in ProfileUpdate) (*contract.User, error) {
	resp, err := b.call(ctx, request{op: "update profile", method: http.MethodPut, path: "/users/update-profile", token: token, body: in})
	if err != nil {
		return nil, err
	}
	if resp.User != nil {
		return resp.User, nil
	}
	return &contract.User{Name: in.Name, Email: in.Email, PhoneNumber: in.PhoneNumber}, nil
}

func (b *HTTPBackend) BookedSlots(ctx context.Context, token string) (availability.BookedSlotsMap, error) {
	raw, err := b.send(ctx, request{op: "fetch booked slots", method: http.MethodGet, path: "/appointments/booked-slots", token: token})
	if err != nil {
		return nil, err
	}
	out := availability.BookedSlotsMap{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Kind: KindTransport, Op: "fetch booked slots", Message: "unexpected booked-slots payload", Err: err}
	}
	return out, nil
}

func (b *HTTPBackend) Book(ctx context.Context, token string, req BookingRequest) (*BookingConfirmation, error) {
	resp, err := b.call(ctx, request{
		op:     "book appointment",
		method: http.MethodPost,
		path:   "/appointments/book/" + url.PathEscape(req.UserID),
		token:  token,
		body:   req,
	})
	if err != nil {
		return nil, err
	}
	return &BookingConfirmation{Code: ConfirmationCode(resp), Message: resp.Message}, nil
}

// ConfirmationCode returns the first non-empty confirmation code carried by
// a booking response.
func ConfirmationCode(resp *contract.Response) string {
	if resp == nil {
		return ""
	}
	candidates := []string{resp.ConfirmationCode, resp.BookingConfirmationCode}
	if resp.Data != nil {
		candidates = append(candidates, resp.Data.ConfirmationCode)
	}
	if resp.Appointment != nil {
		candidates = append(candidates, resp.Appointment.ConfirmationCode)
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func (b *HTTPBackend) UserBookings(ctx context.Context, token, userID string) ([]contract.Appointment, error) {
	resp, err := b.call(ctx, request{op: "list bookings", method: http.MethodGet, path: "/users/get-user-bookings/" + url.PathEscape(userID), token: token})
	if err != nil {
		return nil, err
	}
	if resp.User != nil && len(resp.User.Bookings) > 0 {
		return resp.User.Bookings, nil
	}
	return appointmentList(resp), nil
}

func (b *HTTPBackend) AppointmentByCode(ctx context.Context, token, code string) (*contract.Appointment, error) {
	resp, err := b.call(ctx, request{op: "find booking", method: http.MethodGet, path: "/appointments/get-by-confirmation-code/" + url.PathEscape(code), token: token})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.Appointment != nil:
		return resp.Appointment, nil
	case resp.Data != nil:
		return resp.Data, nil
	}
	return nil, &Error{Kind: KindNotFound, Status: http.StatusNotFound, Op: "find booking", Message: fmt.Sprintf("no booking with confirmation code %s", code)}
}

func (b *HTTPBackend) AllAppointments(ctx context.Context, token string) ([]contract.Appointment, error) {
	resp, err := b.call(ctx, request{op: "list all bookings", method: http.MethodGet, path: "/appointments/all", token: token})
	if err != nil {
		return nil, err
	}
	return appointmentList(resp), nil
}

func (b *HTTPBackend) AllUsers(ctx context.Context, token string) ([]contract.User, error) {
	resp, err := b.call(ctx, request{op: "list users", method: http.MethodGet, path: "/users/all", token: token})
	if err != nil {
		return nil, err
	}
	if resp.UserList == nil {
		return []contract.User{}, nil
	}
	return resp.UserList, nil
}

func (b *HTTPBackend) UserByID(ctx context.Context, token, userID string) (*contract.User, error) {
	resp, err := b.call(ctx, request{op: "get user", method: http.MethodGet, path: "/users/get-by-id/" + url.PathEscape(userID), token: token})
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &Error{Kind: KindServer, Op: "get user", Message: "user response carried no user"}
	}
	return resp.User, nil
}

func (b *HTTPBackend) DeleteUser(ctx context.Context, token, userID string) error {
	_, err := b.call(ctx, request{op: "delete user", method: http.MethodDelete, path: "/users/delete/" + url.PathEscape(userID), token: token})
	return err
}

func (b *HTTPBackend) DeleteAppointment(ctx context.Context, token, appointmentID string) error {
	_, err := b.call(ctx, request{op: "delete booking", method: http.MethodDelete, path: "/appointments/delete/" + url.PathEscape(appointmentID), token: token})
	return err
}

func appointmentList(resp *contract.Response) []contract.Appointment {
	switch {
	case len(resp.AppointmentList) > 0:
		return resp.AppointmentList
	case len(resp.BookingList) > 0:
		return resp.BookingList
	}
	return []contract.Appointment{}
}

func messageOr(msg, fallback string) string {
	if m := strings.TrimSpace(msg); m != "" {
		return m
	}
	return fallback
}
