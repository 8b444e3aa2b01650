package mailprobe

// Result is the full outcome of an email validation.
// Valid is true only if all configured checks passed. Verdict and Reason
// carry the deliverability classification and are always populated,
// including when the SMTP probe never ran.
type Result struct {
	Email        string        `json:"email"`
	Valid        bool          `json:"valid"`
	Verdict      Verdict       `json:"verdict"`
	Reason       string        `json:"reason"`
	MXHostsTried []string      `json:"mxHostsTried,omitempty"`
	Checks       []CheckResult `json:"checks"`
}

// FailedChecks returns those CheckResults that did not pass.
func (r Result) FailedChecks() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// CheckFor returns the CheckResult for the given level, if it exists.
// The second return value indicates whether the given level was executed.
func (r Result) CheckFor(level CheckLevel) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Level == level {
			return c, true
		}
	}
	return CheckResult{}, false
}

// finalize fills Verdict, Reason and MXHostsTried from the executed
// checks. Without an SMTP result the verdict is Indeterminate and the
// reason names the stage that stopped the pipeline.
func (r *Result) finalize() {
	r.Verdict = VerdictIndeterminate

	if smtp, ok := r.CheckFor(LevelSMTP); ok {
		if smtp.Verdict != "" {
			r.Verdict = smtp.Verdict
		}
		r.Reason = smtp.Details
		seen := make(map[string]bool)
		for _, a := range smtp.Attempts {
			if a.Host != "" && !seen[a.Host] {
				seen[a.Host] = true
				r.MXHostsTried = append(r.MXHostsTried, a.Host)
			}
		}
		return
	}

	for _, c := range r.Checks {
		if !c.Passed {
			r.Reason = c.Level + ": " + c.Details
			return
		}
	}
	if n := len(r.Checks); n > 0 {
		r.Reason = r.Checks[n-1].Details
	}
}
