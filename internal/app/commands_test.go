package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/gova-training/gova/internal/availability"
	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/contract"
)

func TestLoginStoresSession(t *testing.T) {
	fb := &fakeBackend{
		login: &backend.LoginResult{Token: "access-1", RefreshToken: "refresh-1", Role: "USER", Message: "Login successful"},
		user:  &contract.User{ID: "u-1", Name: "Dana Levi", Email: "dana@example.com"},
	}
	env := newTestEnv(t, fb)

	out, _, err := run(t, "login", "--email", "dana@example.com", "--password", "secret1", "--json")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	envl := decodeEnvelope(t, out)
	if envl.Command != "login" {
		t.Fatalf("unexpected command: %q", envl.Command)
	}
	s := env.current(t)
	if s.AccessToken != "access-1" || s.RefreshToken != "refresh-1" {
		t.Fatalf("tokens not stored: %+v", s)
	}
	if s.UserID != "u-1" || s.Profile.Name != "Dana Levi" {
		t.Fatalf("profile not stored: %+v", s)
	}
	if len(fb.logins) != 1 || fb.logins[0].Email != "dana@example.com" {
		t.Fatalf("unexpected logins: %+v", fb.logins)
	}
}

func TestLoginProfileFailureIsWarning(t *testing.T) {
	fb := &fakeBackend{
		login:      &backend.LoginResult{Token: "access-1"},
		profileErr: &backend.Error{Kind: backend.KindServer, Status: 500, Message: "boom"},
	}
	env := newTestEnv(t, fb)

	out, _, err := run(t, "login", "--email", "dana@example.com", "--password", "secret1", "--json")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if envl := decodeEnvelope(t, out); len(envl.Warnings) != 1 || !strings.Contains(envl.Warnings[0], "boom") {
		t.Fatalf("expected profile warning, got %v", envl.Warnings)
	}
	if !env.current(t).LoggedIn() {
		t.Fatalf("expected session to be stored")
	}
}

func TestLoginValidatesBeforeNetwork(t *testing.T) {
	fb := &fakeBackend{}
	newTestEnv(t, fb)

	_, _, err := run(t, "login", "--email", "not-an-email", "--password", "secret1", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
	if len(fb.logins) != 0 {
		t.Fatalf("expected no backend call, got %d", len(fb.logins))
	}
}

func TestLoginBadCredentials(t *testing.T) {
	fb := &fakeBackend{loginErr: &backend.Error{Kind: backend.KindCredentials, Status: 401, Message: "Bad credentials"}}
	env := newTestEnv(t, fb)

	_, errOut, err := run(t, "login", "--email", "dana@example.com", "--password", "wrong1", "--json")
	if code := ExitCode(err); code != 3 {
		t.Fatalf("exit code mismatch: got=%d want=3", code)
	}
	if !strings.Contains(errOut, "Bad credentials") || !strings.Contains(errOut, string(contract.ErrUnauthorized)) {
		t.Fatalf("unexpected error payload: %q", errOut)
	}
	if env.current(t).LoggedIn() {
		t.Fatalf("failed login must not store a session")
	}
}

func TestLoginPasswordStdin(t *testing.T) {
	fb := &fakeBackend{
		login: &backend.LoginResult{Token: "access-1"},
		user:  &contract.User{ID: "u-1"},
	}
	newTestEnv(t, fb)

	cmd := NewRootCommand()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetIn(strings.NewReader("two words\n"))
	cmd.SetArgs([]string{"login", "--email", "dana@example.com", "--password-stdin", "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if fb.logins[0].Password != "two words" {
		t.Fatalf("password = %q", fb.logins[0].Password)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{})
	env.signIn(t, "USER")

	out, _, err := run(t, "logout", "--json")
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if !strings.Contains(out, `"was_logged_in": true`) {
		t.Fatalf("unexpected logout output: %q", out)
	}
	if env.current(t).LoggedIn() {
		t.Fatalf("session still present after logout")
	}
}

func TestWhoamiRequiresLogin(t *testing.T) {
	newTestEnv(t, &fakeBackend{})
	_, errOut, err := run(t, "whoami", "--json")
	if code := ExitCode(err); code != 3 {
		t.Fatalf("exit code mismatch: got=%d want=3", code)
	}
	if !strings.Contains(errOut, "not logged in") {
		t.Fatalf("unexpected error: %q", errOut)
	}
}

func TestTokenRefreshReplacesAccessToken(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{})
	env.signIn(t, "USER")

	if _, _, err := run(t, "token", "refresh", "--json"); err != nil {
		t.Fatalf("token refresh failed: %v", err)
	}
	s := env.current(t)
	if s.AccessToken != "access-2" || s.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected session after refresh: %+v", s)
	}
}

func TestSlotsReportsRemainingSlots(t *testing.T) {
	fb := &fakeBackend{booked: availability.BookedSlotsMap{
		"2099-01-05": availability.NewSlotSet(availability.Evening),
		"2099-01-06": availability.NewSlotSet(availability.Morning, availability.Evening),
	}}
	newTestEnv(t, fb)

	out, _, err := run(t, "slots", "--date", "2099-01-05", "--json")
	if err != nil {
		t.Fatalf("slots failed: %v", err)
	}
	var res struct {
		Date        string   `json:"date"`
		Available   []string `json:"available"`
		FullyBooked bool     `json:"fully_booked"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, out).Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Date != "2099-01-05" || len(res.Available) != 1 || res.Available[0] != "morning" || res.FullyBooked {
		t.Fatalf("unexpected slots: %+v", res)
	}

	out, _, err = run(t, "slots", "--date", "2099-01-06", "--plain")
	if err != nil {
		t.Fatalf("slots failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "2099-01-06\tfully_booked\t-" {
		t.Fatalf("unexpected plain output: %q", got)
	}
}

func TestSlotsInvalidDate(t *testing.T) {
	newTestEnv(t, &fakeBackend{})
	_, _, err := run(t, "slots", "--date", "someday", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
}

func TestCalendarHidesUnselectableDays(t *testing.T) {
	fb := &fakeBackend{booked: availability.BookedSlotsMap{
		"2099-01-06": availability.NewSlotSet(availability.Morning, availability.Evening),
	}}
	newTestEnv(t, fb)

	out, _, err := run(t, "calendar", "--from", "2099-01-05", "--to", "2099-01-07", "--json")
	if err != nil {
		t.Fatalf("calendar failed: %v", err)
	}
	var rows []struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, out).Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Date != "2099-01-05" || rows[1].Date != "2099-01-07" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	out, _, err = run(t, "calendar", "--from", "2099-01-05", "--to", "2099-01-07", "--all", "--json")
	if err != nil {
		t.Fatalf("calendar --all failed: %v", err)
	}
	if err := json.Unmarshal(decodeEnvelope(t, out).Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected all three days, got %+v", rows)
	}
}

func TestCalendarRejectsReversedRange(t *testing.T) {
	newTestEnv(t, &fakeBackend{})
	_, _, err := run(t, "calendar", "--from", "2099-01-07", "--to", "2099-01-05", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
}

func TestBookRequiresLogin(t *testing.T) {
	fb := &fakeBackend{}
	newTestEnv(t, fb)
	_, _, err := run(t, "book", "--date", "2099-01-05", "--slot", "morning", "--json")
	if code := ExitCode(err); code != 3 {
		t.Fatalf("exit code mismatch: got=%d want=3", code)
	}
	if len(fb.bookings) != 0 {
		t.Fatalf("expected no booking call")
	}
}

func TestBookUsesProfileContactAndRecordsHistory(t *testing.T) {
	fb := &fakeBackend{
		user:     &contract.User{ID: "u-1", Name: "Dana Levi", Email: "dana@example.com", PhoneNumber: "0501234567"},
		bookCode: "ABC123",
	}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	out, _, err := run(t, "book", "--date", "2099-01-05", "--slot", "morning", "--json")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if len(fb.bookings) != 1 {
		t.Fatalf("expected one booking call, got %d", len(fb.bookings))
	}
	req := fb.bookings[0]
	if req.FullName != "Dana Levi" || req.UserEmail != "dana@example.com" || req.PhoneNumber != "0501234567" {
		t.Fatalf("contact not taken from profile: %+v", req)
	}
	if req.Date != "2099-01-05" || req.TimeSlot != "morning" || req.UserID != "u-1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	var conf contract.Confirmation
	if err := json.Unmarshal(decodeEnvelope(t, out).Data, &conf); err != nil {
		t.Fatal(err)
	}
	if conf.Code != "ABC123" {
		t.Fatalf("unexpected confirmation: %+v", conf)
	}

	entries, err := readHistory()
	if err != nil {
		t.Fatalf("readHistory failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Code != "ABC123" || entries[0].Slot != "morning" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}

func TestBookPhrase(t *testing.T) {
	fb := &fakeBackend{bookCode: "XYZ"}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	_, _, err := run(t, "book", "2099-01-05 evening", "--name", "Dana Levi", "--email", "dana@example.com", "--phone", "0501234567", "--json")
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if len(fb.bookings) != 1 || fb.bookings[0].TimeSlot != "evening" || fb.bookings[0].Date != "2099-01-05" {
		t.Fatalf("unexpected bookings: %+v", fb.bookings)
	}
}

func TestBookTakenSlotIsConflict(t *testing.T) {
	fb := &fakeBackend{
		user:   &contract.User{ID: "u-1", Name: "Dana Levi", Email: "dana@example.com", PhoneNumber: "0501234567"},
		booked: availability.BookedSlotsMap{"2099-01-05": availability.NewSlotSet(availability.Morning)},
	}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	_, errOut, err := run(t, "book", "--date", "2099-01-05", "--slot", "morning", "--json")
	if code := ExitCode(err); code != 5 {
		t.Fatalf("exit code mismatch: got=%d want=5", code)
	}
	if !strings.Contains(errOut, string(contract.ErrConflict)) {
		t.Fatalf("unexpected error payload: %q", errOut)
	}
	if len(fb.bookings) != 0 {
		t.Fatalf("expected no booking call for a taken slot")
	}
}

func TestBookServerConflictUsesServerMessage(t *testing.T) {
	fb := &fakeBackend{
		user:    &contract.User{ID: "u-1", Name: "Dana Levi", Email: "dana@example.com", PhoneNumber: "0501234567"},
		bookErr: &backend.Error{Kind: backend.KindConflict, Status: 409, Message: "Slot already booked"},
	}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	_, errOut, err := run(t, "book", "--date", "2099-01-05", "--slot", "evening", "--json")
	if code := ExitCode(err); code != 5 {
		t.Fatalf("exit code mismatch: got=%d want=5", code)
	}
	if !strings.Contains(errOut, "Slot already booked") {
		t.Fatalf("expected server message, got: %q", errOut)
	}
	if entries, _ := readHistory(); len(entries) != 0 {
		t.Fatalf("failed booking must not be recorded: %+v", entries)
	}
}

func TestBookDryRunDoesNotSubmit(t *testing.T) {
	fb := &fakeBackend{user: &contract.User{ID: "u-1", Name: "Dana Levi", Email: "dana@example.com", PhoneNumber: "0501234567"}}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	out, _, err := run(t, "book", "--date", "2099-01-05", "--slot", "morning", "--dry-run", "--json")
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(fb.bookings) != 0 {
		t.Fatalf("dry run must not submit")
	}
	if envl := decodeEnvelope(t, out); envl.Meta["dry_run"] != true {
		t.Fatalf("expected dry_run meta, got %v", envl.Meta)
	}
}

func TestBookRejectsPhraseWithFlags(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{})
	env.signIn(t, "USER")
	_, _, err := run(t, "book", "tomorrow morning", "--date", "2099-01-05", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
}

func TestBookingsShowNotFound(t *testing.T) {
	newTestEnv(t, &fakeBackend{})
	_, _, err := run(t, "bookings", "show", "NOPE", "--json")
	if code := ExitCode(err); code != 4 {
		t.Fatalf("exit code mismatch: got=%d want=4", code)
	}
}

func TestBookingsListUpcomingSorted(t *testing.T) {
	fb := &fakeBackend{mine: []contract.Appointment{
		{ID: "a-2", Date: "2099-02-01", TimeSlot: "morning", ConfirmationCode: "C2"},
		{ID: "a-0", Date: "2000-01-01", TimeSlot: "evening", ConfirmationCode: "C0"},
		{ID: "a-1", Date: "2099-01-01", TimeSlot: "evening", ConfirmationCode: "C1"},
	}}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	out, _, err := run(t, "bookings", "list", "--upcoming", "--json")
	if err != nil {
		t.Fatalf("bookings list failed: %v", err)
	}
	var items []contract.Appointment
	if err := json.Unmarshal(decodeEnvelope(t, out).Data, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "a-1" || items[1].ID != "a-2" {
		t.Fatalf("unexpected bookings: %+v", items)
	}
}

func TestBookingsExportWritesFile(t *testing.T) {
	fb := &fakeBackend{mine: []contract.Appointment{
		{ID: "a-1", Date: "2099-01-01", TimeSlot: "evening", ConfirmationCode: "C1"},
		{ID: "a-2", Date: "bad", TimeSlot: "morning"},
	}}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	path := filepath.Join(t.TempDir(), "bookings.ics")
	out, _, err := run(t, "bookings", "export", "--out", path, "--json")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if envl := decodeEnvelope(t, out); len(envl.Warnings) != 1 {
		t.Fatalf("expected one skipped appointment warning, got %v", envl.Warnings)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(raw), "BEGIN:VEVENT"); got != 1 {
		t.Fatalf("expected one event, got %d", got)
	}
}

func TestAdminRequiresAdminRole(t *testing.T) {
	fb := &fakeBackend{}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	_, errOut, err := run(t, "admin", "bookings", "--json")
	if code := ExitCode(err); code != 3 {
		t.Fatalf("exit code mismatch: got=%d want=3", code)
	}
	if !strings.Contains(errOut, "not an admin") {
		t.Fatalf("unexpected error: %q", errOut)
	}
	if fb.adminCalls != 0 {
		t.Fatalf("expected no admin calls, got %d", fb.adminCalls)
	}
}

func TestAdminBookings(t *testing.T) {
	fb := &fakeBackend{all: []contract.Appointment{
		{ID: "a-2", Date: "2099-01-02", TimeSlot: "morning"},
		{ID: "a-1", Date: "2099-01-01", TimeSlot: "evening"},
	}}
	env := newTestEnv(t, fb)
	env.signIn(t, "ADMIN")

	out, _, err := run(t, "admin", "bookings", "--json")
	if err != nil {
		t.Fatalf("admin bookings failed: %v", err)
	}
	envl := decodeEnvelope(t, out)
	if envl.Meta["count"] != float64(2) {
		t.Fatalf("unexpected meta: %v", envl.Meta)
	}
}

func TestAdminDeleteNeedsConfirmation(t *testing.T) {
	fb := &fakeBackend{}
	env := newTestEnv(t, fb)
	env.signIn(t, "ADMIN")

	_, _, err := run(t, "admin", "delete", "a-1", "--no-input", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
	if len(fb.deleted) != 0 {
		t.Fatalf("delete must not run without confirmation")
	}

	if _, _, err := run(t, "admin", "delete", "a-1", "--yes", "--json"); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if len(fb.deleted) != 1 || fb.deleted[0] != "a-1" {
		t.Fatalf("unexpected deletes: %v", fb.deleted)
	}
}

func TestAdminUsersShow(t *testing.T) {
	fb := &fakeBackend{users: []contract.User{{ID: "u-7", Name: "Noa Cohen", Email: "noa@example.com", Role: "USER"}}}
	env := newTestEnv(t, fb)
	env.signIn(t, "ADMIN")

	out, _, err := run(t, "admin", "users", "show", "u-7", "--json")
	if err != nil {
		t.Fatalf("admin users show failed: %v", err)
	}
	envl := decodeEnvelope(t, out)
	var user contract.User
	if err := json.Unmarshal(envl.Data, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.ID != "u-7" || user.Email != "noa@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	_, errOut, err := run(t, "admin", "users", "show", "u-404", "--json")
	if code := ExitCode(err); code != 4 {
		t.Fatalf("exit code mismatch: got=%d want=4", code)
	}
	if !strings.Contains(errOut, "User Not Found") {
		t.Fatalf("unexpected error: %q", errOut)
	}
}

func TestAdminUsersDelete(t *testing.T) {
	fb := &fakeBackend{}
	env := newTestEnv(t, fb)
	env.signIn(t, "ADMIN")

	_, _, err := run(t, "admin", "users", "delete", "u-7", "--no-input", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
	_, _, err = run(t, "admin", "users", "delete", "u-1", "--yes", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("deleting the signed-in account: got exit %d want 2", code)
	}
	if len(fb.deletedUsers) != 0 {
		t.Fatalf("delete must not run: %v", fb.deletedUsers)
	}

	if _, _, err := run(t, "admin", "users", "delete", "u-7", "--yes", "--json"); err != nil {
		t.Fatalf("admin users delete failed: %v", err)
	}
	if len(fb.deletedUsers) != 1 || fb.deletedUsers[0] != "u-7" {
		t.Fatalf("unexpected deletes: %v", fb.deletedUsers)
	}
}

func TestAdminUsersDeleteRequiresAdminRole(t *testing.T) {
	fb := &fakeBackend{}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	_, _, err := run(t, "admin", "users", "delete", "u-7", "--yes", "--json")
	if code := ExitCode(err); code != 3 {
		t.Fatalf("exit code mismatch: got=%d want=3", code)
	}
	if fb.adminCalls != 0 {
		t.Fatalf("expected no admin calls, got %d", fb.adminCalls)
	}
}

func TestHistoryListAndClear(t *testing.T) {
	newTestEnv(t, &fakeBackend{})
	for _, code := range []string{"C1", "C2", "C3"} {
		if err := appendHistory(historyEntry{Type: "booking", Code: code}); err != nil {
			t.Fatal(err)
		}
	}

	out, _, err := run(t, "history", "list", "--limit", "2", "--json")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	envl := decodeEnvelope(t, out)
	var entries []historyEntry
	if err := json.Unmarshal(envl.Data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Code != "C2" || entries[1].Code != "C3" {
		t.Fatalf("unexpected page: %+v", entries)
	}
	if envl.Meta["has_more"] != true {
		t.Fatalf("expected has_more, got %v", envl.Meta)
	}

	out, _, err = run(t, "history", "clear", "--json")
	if err != nil {
		t.Fatalf("history clear failed: %v", err)
	}
	if !strings.Contains(out, `"cleared": 3`) {
		t.Fatalf("unexpected clear output: %q", out)
	}
}

func TestProfileShowCachesName(t *testing.T) {
	fb := &fakeBackend{user: &contract.User{ID: "u-1", Name: "Dana Cohen", Email: "dana@example.com"}}
	env := newTestEnv(t, fb)
	env.signIn(t, "USER")

	out, _, err := run(t, "profile", "show", "--json")
	if err != nil {
		t.Fatalf("profile show failed: %v", err)
	}
	if !strings.Contains(out, `"name": "Dana Cohen"`) {
		t.Fatalf("unexpected profile output: %q", out)
	}
	if got := env.current(t).Profile.Name; got != "Dana Cohen" {
		t.Fatalf("cached name = %q", got)
	}
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{})
	env.signIn(t, "USER")

	out, _, err := run(t, "profile", "update", "--name", "Dana L", "--json")
	if err != nil {
		t.Fatalf("profile update failed: %v", err)
	}
	if envl := decodeEnvelope(t, out); envl.Meta["outcome"] != "updated" {
		t.Fatalf("unexpected meta: %v", envl.Meta)
	}
}

func TestProfileUpdateNothingToUpdate(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{})
	env.signIn(t, "USER")

	_, _, err := run(t, "profile", "update", "--json")
	if code := ExitCode(err); code != 2 {
		t.Fatalf("exit code mismatch: got=%d want=2", code)
	}
}
