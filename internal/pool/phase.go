package pool

// Phase is the derived lifecycle phase. It exists for observability only;
// every guard in the controller uses the boolean predicates below, evaluated
// fresh against the caller-supplied current time.
type Phase string

const (
	PhasePreEnroll Phase = "preEnroll"
	PhaseEnrolling Phase = "enrolling"
	PhasePostPlay  Phase = "postPlay"
	PhaseExpired   Phase = "expired"
)

// EnrollmentOpen reports whether joining is time-permitted at now.
func (c Config) EnrollmentOpen(now int64) bool {
	return now >= c.EnrollStart && now <= c.PlayEnd
}

// PlaytimeEnded reports whether the play window has closed at now.
func (c Config) PlaytimeEnded(now int64) bool {
	return now > c.PlayEnd
}

// WithinClaimWindow reports whether claims and root publication are still
// time-permitted at now.
func (c Config) WithinClaimWindow(now int64) bool {
	return now <= c.ClaimExpiry
}

// ClaimWindowExpired reports whether the sweep is time-permitted at now.
// Note the shared boundary: at now == ClaimExpiry both WithinClaimWindow and
// ClaimWindowExpired hold.
func (c Config) ClaimWindowExpired(now int64) bool {
	return now >= c.ClaimExpiry
}

// PhaseAt derives the lifecycle phase at now.
func (c Config) PhaseAt(now int64) Phase {
	switch {
	case now < c.EnrollStart:
		return PhasePreEnroll
	case now <= c.PlayEnd:
		return PhaseEnrolling
	case now < c.ClaimExpiry:
		return PhasePostPlay
	default:
		return PhaseExpired
	}
}
