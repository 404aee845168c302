package importer

import "fmt"

// ErrorCode identifies a class of import failure.
type ErrorCode string

const (
	ErrNoCreateAccess   ErrorCode = "E3000"
	ErrNoUpdateAccess   ErrorCode = "E3001"
	ErrNoDeleteAccess   ErrorCode = "E3002"
	ErrInvalidAccess    ErrorCode = "E3010"
	ErrNoPublicAccess   ErrorCode = "E3011"
	ErrNoExternalAccess ErrorCode = "E3012"
	ErrMissingProperty  ErrorCode = "E4000"
	ErrLengthExceeded   ErrorCode = "E4001"
	ErrInvalidValue     ErrorCode = "E4005"
	ErrObjectNotFound   ErrorCode = "E4014"
	ErrObjectExists     ErrorCode = "E5001"
	ErrInvalidReference ErrorCode = "E5002"
	ErrUniqueConflict   ErrorCode = "E5003"
	ErrAtomicAbort      ErrorCode = "E7000"
)

// ErrorReport is one failure on one submitted object.
type ErrorReport struct {
	Code      ErrorCode `json:"errorCode"`
	Message   string    `json:"message"`
	MainKlass string    `json:"mainKlass"`
	Property  string    `json:"errorProperty,omitempty"`
	Value     any       `json:"value,omitempty"`
}

func newError(code ErrorCode, klass, property string, format string, args ...any) ErrorReport {
	return ErrorReport{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		MainKlass: klass,
		Property:  property,
	}
}

// ObjectReport records the outcome of one submitted object.
type ObjectReport struct {
	Klass        string        `json:"klass"`
	Index        int           `json:"index"`
	UID          string        `json:"uid,omitempty"`
	DisplayName  string        `json:"displayName,omitempty"`
	ErrorReports []ErrorReport `json:"errorReports,omitempty"`
}

func (o *ObjectReport) add(reports ...ErrorReport) {
	o.ErrorReports = append(o.ErrorReports, reports...)
}

// HasErrors reports whether the object was rejected.
func (o *ObjectReport) HasErrors() bool {
	return len(o.ErrorReports) > 0
}

// Stats counts outcomes.
type Stats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Ignored int `json:"ignored"`
	Total   int `json:"total"`
}

func (s *Stats) merge(o Stats) {
	s.Created += o.Created
	s.Updated += o.Updated
	s.Deleted += o.Deleted
	s.Ignored += o.Ignored
	s.Total += o.Total
}

func (s *Stats) total() {
	s.Total = s.Created + s.Updated + s.Deleted + s.Ignored
}

// TypeReport aggregates the objects of one type.
type TypeReport struct {
	Klass         string          `json:"klass"`
	Stats         Stats           `json:"stats"`
	ObjectReports []*ObjectReport `json:"objectReports,omitempty"`
}

// HasErrors reports whether any object of the type was rejected.
func (t *TypeReport) HasErrors() bool {
	for _, o := range t.ObjectReports {
		if o.HasErrors() {
			return true
		}
	}
	return false
}

// ErrorReports flattens every error of the type.
func (t *TypeReport) ErrorReports() []ErrorReport {
	var out []ErrorReport
	for _, o := range t.ObjectReports {
		out = append(out, o.ErrorReports...)
	}
	return out
}

// Status summarizes a report.
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// Report is the result of one import call.
type Report struct {
	Status      Status        `json:"status"`
	Stats       Stats         `json:"stats"`
	TypeReports []*TypeReport `json:"typeReports"`

	byType map[string]*TypeReport
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{TypeReports: []*TypeReport{}, byType: make(map[string]*TypeReport)}
}

// TypeReport returns the report for klass, creating it on first use.
func (r *Report) TypeReport(klass string) *TypeReport {
	if t, ok := r.byType[klass]; ok {
		return t
	}
	t := &TypeReport{Klass: klass}
	r.byType[klass] = t
	r.TypeReports = append(r.TypeReports, t)
	return t
}

// HasErrors reports whether any object was rejected.
func (r *Report) HasErrors() bool {
	for _, t := range r.TypeReports {
		if t.HasErrors() {
			return true
		}
	}
	return false
}

// ObjectReports returns every object report across types.
func (r *Report) ObjectReports() []*ObjectReport {
	var out []*ObjectReport
	for _, t := range r.TypeReports {
		out = append(out, t.ObjectReports...)
	}
	return out
}

func (r *Report) finish() {
	r.Stats = Stats{}
	for _, t := range r.TypeReports {
		t.Stats.total()
		r.Stats.merge(t.Stats)
	}
	switch {
	case r.Stats.Ignored == 0:
		r.Status = StatusOK
	case r.Stats.Ignored == r.Stats.Total:
		r.Status = StatusError
	default:
		r.Status = StatusWarning
	}
}
