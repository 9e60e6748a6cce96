package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/output"
	"github.com/gova-training/gova/internal/timeparse"
)

const defaultAPIURL = "http://localhost:4040"

var backendFactory = newHTTPBackend

type globalOptions struct {
	JSON           bool
	JSONL          bool
	Plain          bool
	Fields         string
	Quiet          bool
	Verbose        bool
	NoColor        bool
	NoInput        bool
	FailOnDegraded bool
	Profile        string
	Config         string
	APIURL         string
	TZ             string
	Labels         string
	ClosedDays     string
	Timeout        time.Duration
	RateLimit      float64
	SchemaVersion  string

	logger *zap.Logger
}

func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		renderTopLevelError(cmd, err)
	}
	return ExitCode(err)
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{
		Profile:       "default",
		APIURL:        defaultAPIURL,
		Timeout:       15 * time.Second,
		SchemaVersion: contract.SchemaVersion,
	}

	root := &cobra.Command{
		Use:           "gova",
		Short:         "Book safety-training appointments from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       BuildVersionString(),
	}
	root.SetVersionTemplate("gova {{.Version}}\n")

	root.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output structured JSON")
	root.PersistentFlags().BoolVar(&opts.JSONL, "jsonl", false, "Output newline-delimited JSON")
	root.PersistentFlags().BoolVar(&opts.Plain, "plain", false, "Output stable plain text")
	root.PersistentFlags().StringVar(&opts.Fields, "fields", "", "Projected fields, comma-separated")
	root.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Reduce success output")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose diagnostics")
	root.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().BoolVar(&opts.NoInput, "no-input", false, "Disable prompts")
	root.PersistentFlags().BoolVar(&opts.FailOnDegraded, "fail-on-degraded", false, "Fail if the booking service is unreachable")
	root.PersistentFlags().StringVar(&opts.Profile, "profile", "default", "Config profile")
	root.PersistentFlags().StringVar(&opts.Config, "config", "", "Config file path")
	root.PersistentFlags().StringVar(&opts.APIURL, "api-url", defaultAPIURL, "Booking service base URL")
	root.PersistentFlags().StringVar(&opts.TZ, "tz", "", "IANA timezone for dates")
	root.PersistentFlags().StringVar(&opts.Labels, "labels", "", "Slot label language for plain output (en|he)")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 15*time.Second, "Backend call timeout (e.g. 10s, 1m, 0 to disable)")
	root.PersistentFlags().Float64Var(&opts.RateLimit, "rate-limit", 0, "Maximum requests per second to the booking service (0 for no limit)")
	root.PersistentFlags().StringVar(&opts.SchemaVersion, "schema-version", contract.SchemaVersion, "Output schema version")

	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newLogoutCmd(opts))
	root.AddCommand(newWhoamiCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newSlotsCmd(opts))
	root.AddCommand(newCalendarCmd(opts))
	root.AddCommand(newBookCmd(opts))
	root.AddCommand(newProfileCmd(opts))
	root.AddCommand(newBookingsCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newAdminCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newCompletionCmd(root))

	return root
}

func buildContext(cmd *cobra.Command, opts *globalOptions, command string) (output.Printer, backend.Backend, *globalOptions, error) {
	resolved, err := resolveGlobalOptions(cmd, opts)
	if err != nil {
		return output.Printer{}, nil, nil, Wrap(2, err)
	}
	if conflictCount(resolved.JSON, resolved.JSONL, resolved.Plain) > 1 {
		return output.Printer{}, nil, nil, Wrap(2, errors.New("--json, --jsonl, and --plain are mutually exclusive"))
	}
	mode := output.ModeAuto
	if resolved.JSON {
		mode = output.ModeJSON
	} else if resolved.JSONL {
		mode = output.ModeJSONL
	} else if resolved.Plain {
		mode = output.ModePlain
	}

	printer := output.Printer{
		Mode:          mode,
		Command:       command,
		Fields:        splitCSV(resolved.Fields),
		Quiet:         resolved.Quiet,
		NoColor:       resolved.NoColor,
		SchemaVersion: resolved.SchemaVersion,
		Out:           cmd.OutOrStdout(),
		Err:           cmd.ErrOrStderr(),
	}
	resolved.logger = newLogger(cmd.ErrOrStderr(), resolved.Verbose, printer.EffectiveSuccessMode())

	be, err := backendFactory(resolved)
	if err != nil {
		_ = printer.Error(contract.ErrInvalidUsage, err.Error(), "Use --api-url http(s)://host[:port]")
		return printer, nil, nil, WrapPrinted(2, err)
	}
	be = &timedBackend{inner: be, log: resolved.logger}
	if resolved.FailOnDegraded && !isHealthCommand(command) {
		ctx, cancel := commandContext(resolved)
		defer cancel()
		checks, derr := be.Doctor(ctx)
		setup := buildSetupResult(checks, derr, resolved.APIURL)
		if setup.Degraded || !setup.Ready {
			reasons := deriveDegradedReasonCodes(checks, derr)
			err = fmt.Errorf("degraded environment: %s", strings.Join(reasons, ","))
			_ = printer.Error(contract.ErrBackendUnavailable, err.Error(), "Run `gova status` and address next steps, or disable --fail-on-degraded")
			return printer, nil, nil, WrapPrinted(6, err)
		}
	}
	resolved.logger.Debug("command context",
		zap.String("command", command),
		zap.String("api_url", resolved.APIURL),
		zap.String("mode", string(mode)),
		zap.String("tz", resolved.TZ),
		zap.String("profile", resolved.Profile),
		zap.Duration("timeout", resolved.Timeout),
	)
	return printer, be, resolved, nil
}

func newHTTPBackend(ro *globalOptions) (backend.Backend, error) {
	return backend.NewHTTPBackend(backend.HTTPOptions{
		BaseURL:   ro.APIURL,
		Logger:    ro.logger,
		RateLimit: ro.RateLimit,
		Burst:     1,
	})
}

func commandContext(ro *globalOptions) (context.Context, context.CancelFunc) {
	timing := &timingRecorder{calls: map[string]time.Duration{}}
	base := context.WithValue(context.Background(), timingContextKey{}, timing)
	if ro == nil || ro.Timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, ro.Timeout)
}

type timeoutResult[T any] struct {
	val T
	err error
}

type timingContextKey struct{}

type timingRecorder struct {
	mu    sync.Mutex
	calls map[string]time.Duration
}

func (r *timingRecorder) add(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name] += d
}

func backendTimings(ctx context.Context) map[string]string {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.calls) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rec.calls))
	for k := range rec.calls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = rec.calls[k].String()
	}
	return out
}

// withTimeout returns as soon as ctx is done. A result that arrives later is
// dropped.
func withTimeout[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	ch := make(chan timeoutResult[T], 1)
	go func() {
		v, err := fn()
		ch <- timeoutResult[T]{val: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		return res.val, res.err
	}
}

func timed[T any](ctx context.Context, log *zap.Logger, phase string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := withTimeout(ctx, fn)
	err = annotateBackendError(ctx, phase, err)
	recordTiming(ctx, phase, time.Since(start))
	if err != nil && log != nil {
		log.Debug("booking call failed", zap.Any("call", backendErrorMeta(err)))
	}
	return v, err
}

func recordTiming(ctx context.Context, name string, d time.Duration) {
	rec, _ := ctx.Value(timingContextKey{}).(*timingRecorder)
	if rec == nil {
		return
	}
	rec.add(name, d)
}

func successWithMeta(ctx context.Context, p output.Printer, ro *globalOptions, data any, meta map[string]any, warnings []string) error {
	if ro != nil && ro.Verbose {
		timings := backendTimings(ctx)
		if len(timings) > 0 {
			if meta == nil {
				meta = map[string]any{}
			}
			meta["timings"] = timings
			if ro.logger != nil {
				ro.logger.Debug("backend timings", zap.Any("timings", timings))
			}
		}
	}
	return p.Success(data, meta, warnings)
}

func isHealthCommand(command string) bool {
	return strings.HasPrefix(command, "doctor") ||
		strings.HasPrefix(command, "status")
}

func renderTopLevelError(cmd *cobra.Command, err error) {
	var appErr AppError
	if errors.As(err, &appErr) && appErr.Printed {
		return
	}
	if wantsStructuredErrorOutput(os.Args[1:]) {
		printer := output.Printer{
			Mode:          output.ModeJSON,
			SchemaVersion: contract.SchemaVersion,
			Err:           cmd.ErrOrStderr(),
		}
		_ = printer.Error(errorCodeForExit(ExitCode(err)), err.Error(), "")
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
}

func wantsStructuredErrorOutput(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "--json", arg == "--jsonl":
			return true
		case strings.HasPrefix(arg, "--json="), strings.HasPrefix(arg, "--jsonl="):
			return true
		}
	}
	return false
}

func errorCodeForExit(code int) contract.ErrorCode {
	switch code {
	case 2:
		return contract.ErrInvalidUsage
	case 3:
		return contract.ErrUnauthorized
	case 4:
		return contract.ErrNotFound
	case 5:
		return contract.ErrConflict
	case 6:
		return contract.ErrBackendUnavailable
	default:
		return contract.ErrGeneric
	}
}

func resolveLocation(tz string) *time.Location {
	if strings.TrimSpace(tz) != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

func parseDay(v string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		s = "today"
	}
	return timeparse.ParseDateTime(s, now, loc)
}

func parseClosedDays(v string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, name := range splitCSV(v) {
		wd, ok := timeparse.Weekday(name)
		if !ok {
			return nil, fmt.Errorf("invalid closed day: %s", name)
		}
		out = append(out, wd)
	}
	return out, nil
}

func readSecret(in io.Reader) (string, error) {
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(sc.Text(), "\r"), nil
}

func stdinInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func promptConfirmID(in io.Reader, out io.Writer, what, expected string) (bool, error) {
	if _, err := fmt.Fprintf(out, "Type %s ID to confirm delete: ", what); err != nil {
		return false, err
	}
	var entered string
	if _, err := fmt.Fscanln(in, &entered); err != nil {
		return false, err
	}
	return strings.TrimSpace(entered) == strings.TrimSpace(expected), nil
}

func conflictCount(vals ...bool) int {
	total := 0
	for _, v := range vals {
		if v {
			total++
		}
	}
	return total
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
