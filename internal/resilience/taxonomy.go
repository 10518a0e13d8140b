package resilience

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/apply-cli/internal/model"
)

// Category is the closed set of failure kinds seen while applying to a job.
type Category string

const (
	CategoryNetwork         Category = "network"
	CategoryFormValidation  Category = "form_validation"
	CategoryCaptcha         Category = "captcha"
	CategoryAuthentication  Category = "authentication"
	CategoryElementNotFound Category = "element_not_found"
	CategoryTimeout         Category = "timeout"
	CategoryUnknown         Category = "unknown"
)

// Categories returns every category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryNetwork,
		CategoryFormValidation,
		CategoryCaptcha,
		CategoryAuthentication,
		CategoryElementNotFound,
		CategoryTimeout,
		CategoryUnknown,
	}
}

// ParseCategory maps a free-form category name onto the taxonomy. Anything
// unrecognised is CategoryUnknown.
func ParseCategory(v string) Category {
	for _, c := range Categories() {
		if string(c) == v {
			return c
		}
	}
	return CategoryUnknown
}

// RequiresManualIntervention is true only for captcha and authentication.
func (c Category) RequiresManualIntervention() bool {
	return c == CategoryCaptcha || c == CategoryAuthentication
}

// Retryable reports whether a failure of this category may succeed on retry.
// Unclassified failures are assumed to be possibly transient.
func (c Category) Retryable() bool {
	switch c {
	case CategoryCaptcha, CategoryAuthentication, CategoryFormValidation:
		return false
	default:
		// network, timeout, element_not_found (page may still be loading), unknown.
		return true
	}
}

// typeName is the tag reported as error_type for taxonomy errors.
func (c Category) typeName() string {
	switch c {
	case CategoryNetwork:
		return "NetworkError"
	case CategoryFormValidation:
		return "FormValidationError"
	case CategoryCaptcha:
		return "CaptchaError"
	case CategoryAuthentication:
		return "AuthenticationError"
	case CategoryElementNotFound:
		return "ElementNotFoundError"
	case CategoryTimeout:
		return "TimeoutError"
	default:
		return "ApplicationError"
	}
}

// Error is an application failure tagged with a taxonomy category.
type Error struct {
	Category Category
	Message  string

	// Field names the offending form field for form_validation errors.
	Field string
	// Element describes the missing element for element_not_found errors.
	Element string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an error tagged with category c.
func NewError(c Category, msg string) *Error {
	return &Error{Category: c, Message: msg}
}

// WrapError tags err with category c, keeping it in the chain.
func WrapError(err error, c Category, msg string) *Error {
	return &Error{Category: c, Message: msg, Err: err}
}

// NewNetworkError reports a network-level failure.
func NewNetworkError(msg string) *Error {
	return NewError(CategoryNetwork, msg)
}

// NewFormValidationError reports a rejected form submission.
func NewFormValidationError(msg, field string) *Error {
	e := NewError(CategoryFormValidation, msg)
	e.Field = field
	return e
}

// NewCaptchaError reports a CAPTCHA challenge. An empty message uses the default.
func NewCaptchaError(msg string) *Error {
	if msg == "" {
		msg = "CAPTCHA detected - manual intervention required"
	}
	return NewError(CategoryCaptcha, msg)
}

// NewAuthenticationError reports a login wall. An empty message uses the default.
func NewAuthenticationError(msg string) *Error {
	if msg == "" {
		msg = "Authentication required"
	}
	return NewError(CategoryAuthentication, msg)
}

// NewElementNotFoundError reports an element missing from the page.
func NewElementNotFoundError(msg, element string) *Error {
	e := NewError(CategoryElementNotFound, msg)
	e.Element = element
	return e
}

// NewTimeoutError reports an operation that did not finish in time.
func NewTimeoutError(msg string) *Error {
	return NewError(CategoryTimeout, msg)
}

// CategoryOf returns the category of the first taxonomy error in err's chain,
// or CategoryUnknown when err carries none.
func CategoryOf(err error) Category {
	var ae *Error
	if errors.As(err, &ae) && ae.Category != "" {
		return ae.Category
	}
	return CategoryUnknown
}

// IsRetryable decides whether err is worth another attempt.
func IsRetryable(err error) bool {
	return CategoryOf(err).Retryable()
}

// Classifier turns arbitrary errors into structured error records.
type Classifier struct {
	log *zap.Logger
}

// NewClassifier returns a Classifier logging to log (nil disables logging).
func NewClassifier(log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{log: log}
}

// Classify describes err for the error history of an application. It never
// panics, including for a nil error.
func (c *Classifier) Classify(err error, context string) model.ErrorInfo {
	info := model.ErrorInfo{
		Context:  context,
		Category: string(CategoryUnknown),
	}

	var ae *Error
	switch {
	case err == nil:
		info.ErrorType = "nil"
	case errors.As(err, &ae):
		cat := ae.Category
		if cat == "" {
			cat = CategoryUnknown
		}
		info.ErrorType = cat.typeName()
		info.Message = err.Error()
		info.Category = string(cat)
		info.RequiresManualIntervention = cat.RequiresManualIntervention()
	default:
		info.ErrorType = fmt.Sprintf("%T", err)
		info.Message = err.Error()
	}

	c.log.Error("error handled",
		zap.String("error_type", info.ErrorType),
		zap.String("message", info.Message),
		zap.String("context", info.Context),
		zap.String("category", info.Category),
		zap.Bool("requires_manual_intervention", info.RequiresManualIntervention),
	)
	return info
}
