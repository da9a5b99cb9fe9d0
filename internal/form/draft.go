package form

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"careboard/internal/domain"
)

// State of one edit session.
type State int

const (
	// StateEditing accepts field updates and blur events.
	StateEditing State = iota
	// StateSubmitting rejects all edits; at most one submission is in flight.
	StateSubmitting
	// StateSucceeded is terminal: the record was mutated and the completion
	// callback has fired.
	StateSucceeded
)

// InvalidSelectionError is raised when the patient display token cannot be
// parsed back into a domain identifier. Submission aborts before any network
// call is made.
type InvalidSelectionError struct {
	Token string
}

func (e InvalidSelectionError) Error() string {
	return fmt.Sprintf("patient selection %q is not a valid identifier", e.Token)
}

// Draft is the locally mutable copy of a task's editable fields for one edit
// session. It is seeded from an immutable task snapshot, mutated only by user
// interaction and validation, and discarded when the session closes. The
// patient reference is carried as a display string until submit time, when it
// is parsed back to the domain identifier.
//
// Methods are safe for concurrent use: the submission pipeline runs on a
// background goroutine while the widget loop keeps reading and writing state.
type Draft struct {
	SessionID string

	mu           sync.Mutex
	title        string
	description  string
	expertise    string
	patientToken string
	complete     bool

	state   State
	dirty   bool
	touched map[Field]bool
	errs    map[Field]error
	rules   map[Field][]Rule
}

// NewDraft seeds a draft from a task snapshot. Nullable fields are normalized
// to the empty string so the widget layer never sees a nil.
func NewDraft(t domain.Task) *Draft {
	d := &Draft{
		SessionID:    uuid.NewString(),
		title:        t.Title,
		description:  t.Description,
		patientToken: strconv.FormatInt(t.PatientID, 10),
		complete:     t.Complete,
		touched:      map[Field]bool{},
		errs:         map[Field]error{},
		rules: map[Field][]Rule{
			FieldTitle:   {Required(FieldTitle, "Title is required")},
			FieldPatient: {Required(FieldPatient, "Patient is required")},
		},
	}
	if t.Expertise != nil {
		d.expertise = *t.Expertise
	}
	return d
}

// AddRule attaches an extra rule for a field, checked on blur and submit.
func (d *Draft) AddRule(field Field, r Rule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules[field] = append(d.rules[field], r)
}

func (d *Draft) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

func (d *Draft) Description() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.description
}

func (d *Draft) Expertise() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expertise
}

func (d *Draft) PatientToken() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.patientToken
}

func (d *Draft) Complete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.complete
}

func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Draft) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// Editable reports whether the draft accepts edits.
func (d *Draft) Editable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateEditing
}

// SetField stores the raw value and marks the draft dirty. Once a field has
// been touched, its error is recomputed on every update. Edits while a
// submission is in flight are ignored.
func (d *Draft) SetField(field Field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateEditing {
		return
	}
	switch field {
	case FieldTitle:
		d.title = value
	case FieldDescription:
		d.description = value
	case FieldExpertise:
		d.expertise = value
	case FieldPatient:
		d.patientToken = value
	default:
		return
	}
	d.dirty = true
	if d.touched[field] {
		d.errs[field] = d.check(field)
	}
}

func (d *Draft) SetComplete(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateEditing {
		return
	}
	d.complete = v
	d.dirty = true
}

// Blur marks the field touched and recomputes its rule. Repeated blurs on an
// unchanged value yield the same outcome.
func (d *Draft) Blur(field Field) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched[field] = true
	err := d.check(field)
	d.errs[field] = err
	return err
}

// Validate recomputes every field error synchronously and reports whether the
// draft is submittable.
func (d *Draft) Validate() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	ok := true
	for field := range d.rules {
		d.touched[field] = true
		err := d.check(field)
		d.errs[field] = err
		if err != nil {
			ok = false
		}
	}
	return ok
}

// FieldError returns the current error for a field, nil when clean.
func (d *Draft) FieldError(field Field) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errs[field]
}

// check and value run with d.mu held.
func (d *Draft) check(field Field) error {
	for _, rule := range d.rules[field] {
		if err := rule(d.value(field)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Draft) value(field Field) string {
	switch field {
	case FieldTitle:
		return d.title
	case FieldDescription:
		return d.description
	case FieldExpertise:
		return d.expertise
	case FieldPatient:
		return d.patientToken
	}
	return ""
}

// PatientID parses the display token back to the domain identifier.
func (d *Draft) PatientID() (int64, error) {
	token := strings.TrimSpace(d.PatientToken())
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return 0, InvalidSelectionError{Token: token}
	}
	return id, nil
}

// ExpertiseValue maps the empty display string back to "no expertise".
func (d *Draft) ExpertiseValue() *string {
	v := d.Expertise()
	if v == "" {
		return nil
	}
	return &v
}

func (d *Draft) beginSubmit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateEditing {
		return false
	}
	d.state = StateSubmitting
	return true
}

func (d *Draft) endSubmit(success bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if success {
		d.state = StateSucceeded
		return
	}
	d.state = StateEditing
}
