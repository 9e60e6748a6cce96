package app

import (
	"strings"

	"github.com/gova-training/gova/internal/contract"
)

type setupResult struct {
	Ready     bool                   `json:"ready"`
	Degraded  bool                   `json:"degraded"`
	Checks    []contract.DoctorCheck `json:"checks"`
	NextSteps []string               `json:"next_steps,omitempty"`
	Notes     []string               `json:"notes,omitempty"`
	APIURL    string                 `json:"api_url"`
}

// buildSetupResult folds doctor checks into a readiness verdict. A failed
// check makes the client not ready; a warning only degrades it.
func buildSetupResult(checks []contract.DoctorCheck, derr error, apiURL string) setupResult {
	res := setupResult{
		Ready:  true,
		Checks: checks,
		APIURL: strings.TrimSpace(apiURL),
	}

	has := func(name string) (contract.DoctorCheck, bool) {
		for _, c := range checks {
			if strings.EqualFold(strings.TrimSpace(c.Name), name) {
				return c, true
			}
		}
		return contract.DoctorCheck{}, false
	}
	status := func(c contract.DoctorCheck) string { return strings.ToLower(strings.TrimSpace(c.Status)) }

	urlCheck, hasURL := has("api_url")
	reach, hasReach := has("api_reachable")

	if !hasURL || status(urlCheck) != "ok" {
		res.Ready = false
		res.NextSteps = append(res.NextSteps, "Set the booking service address with --api-url, GOVA_API_URL, or api_url in config.toml.")
	}
	switch {
	case !hasReach || status(reach) == "fail":
		res.Ready = false
		res.NextSteps = append(res.NextSteps, "Start the booking service or check that "+res.APIURL+" is reachable.")
	case status(reach) != "ok":
		res.Degraded = true
		res.Notes = append(res.Notes, "The booking service answered with a server error: "+reach.Message)
	}

	if res.Ready {
		res.NextSteps = append(res.NextSteps, "Sign in with: `gova login --email you@example.com --password-stdin`")
		res.NextSteps = append(res.NextSteps, "Check free slots with: `gova slots --date tomorrow`")
	}

	if derr != nil && !res.Ready {
		res.Notes = append(res.Notes, derr.Error())
	}
	return res
}
