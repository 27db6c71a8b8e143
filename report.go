package ulet

// FailureReport is the structured record handed to the failure reporter for
// every failed attempt, including attempts that later succeed on retry.
type FailureReport struct {
	Kind    FailureKind
	Message string
	Attempt int
	Method  string
	URL     string
}

// FailureReporter receives one FailureReport per failed attempt. Reports
// are fire-and-forget: the client never lets a reporter influence control
// flow, and a slow reporter slows the call, so implementations should be
// cheap or hand off internally.
type FailureReporter interface {
	ReportFailure(report FailureReport)
}

// FailureReporterFunc adapts a function to the FailureReporter interface.
type FailureReporterFunc func(report FailureReport)

// ReportFailure implements FailureReporter.
func (f FailureReporterFunc) ReportFailure(report FailureReport) {
	f(report)
}

// NewLoggerReporter reports failures as warnings on the given logger.
func NewLoggerReporter(logger Logger) FailureReporter {
	return FailureReporterFunc(func(r FailureReport) {
		logger.Warn("attempt failed",
			"kind", string(r.Kind),
			"message", r.Message,
			"attempt", r.Attempt,
			"method", r.Method,
			"url", r.URL,
		)
	})
}
