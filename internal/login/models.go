// internal/login/models.go
package login

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap/zapcore"
)

// Credentials is the single username/password pair used by one attempt.
// It is never persisted and neither value reaches a log sink.
type Credentials struct {
	Username string
	Password string
}

var _ zapcore.ObjectMarshaler = Credentials{}

// Validate rejects pairs that cannot possibly authenticate.
func (c Credentials) Validate() error {
	if c.Username == "" {
		return errors.New("username is empty")
	}
	return nil
}

// String redacts both values so accidental %v formatting is safe.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %s, Password: %s}", redacted(c.Username), redacted(c.Password))
}

func redacted(v string) string {
	if v == "" {
		return "[EMPTY]"
	}
	return "[REDACTED]"
}

// GoString covers %#v.
func (c Credentials) GoString() string { return c.String() }

// MarshalLogObject lets zap.Object log which values are present, never the
// values themselves.
func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("username_set", c.Username != "")
	enc.AddBool("password_set", c.Password != "")
	return nil
}

// FieldDescriptor names a form field and the ordered selectors that may
// identify it. Earlier candidates are preferred.
type FieldDescriptor struct {
	Name       string
	Candidates []Selector
}

// Default descriptors for the usual login page layout: id lookup first,
// then name lookup.
var (
	UsernameField = FieldDescriptor{
		Name: "username",
		Candidates: []Selector{
			{Kind: ByID, Value: "username"},
			{Kind: ByName, Value: "username"},
		},
	}
	PasswordField = FieldDescriptor{
		Name: "password",
		Candidates: []Selector{
			{Kind: ByID, Value: "password"},
			{Kind: ByName, Value: "password"},
		},
	}
)

// SubmitStrategy is one mechanism for triggering form submission.
type SubmitStrategy int

const (
	SubmitNone SubmitStrategy = iota
	SubmitViaEnterKey
	SubmitViaSubmitButton
	SubmitViaFormScript
)

func (s SubmitStrategy) String() string {
	switch s {
	case SubmitViaEnterKey:
		return "SubmitViaEnterKey"
	case SubmitViaSubmitButton:
		return "SubmitViaSubmitButton"
	case SubmitViaFormScript:
		return "SubmitViaFormScript"
	default:
		return "None"
	}
}

// Heuristic is one post-submission success check.
type Heuristic int

const (
	HeuristicNone Heuristic = iota
	UrlChanged
	PresenceOfLogoutAffordance
	AbsenceOfLoginForm
	PresenceOfAuthenticatedContentMarker
)

func (h Heuristic) String() string {
	switch h {
	case UrlChanged:
		return "UrlChanged"
	case PresenceOfLogoutAffordance:
		return "PresenceOfLogoutAffordance"
	case AbsenceOfLoginForm:
		return "AbsenceOfLoginForm"
	case PresenceOfAuthenticatedContentMarker:
		return "PresenceOfAuthenticatedContentMarker"
	default:
		return "None"
	}
}

// Outcome is the result of one AttemptLogin call. Callers receive copies;
// nothing in this package mutates an Outcome after returning it.
type Outcome struct {
	AttemptID   string
	Succeeded   bool
	FinalURL    string
	Heuristic   Heuristic
	Strategy    SubmitStrategy
	State       State
	Diagnostics []string
	StartedAt   time.Time
	Duration    time.Duration
}

// clone detaches the diagnostics slice from the controller's recorder.
func (o Outcome) clone() Outcome {
	o.Diagnostics = slices.Clone(o.Diagnostics)
	return o
}
