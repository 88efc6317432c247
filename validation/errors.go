package validation

import "fmt"

// AuthError means no valid credential is available. Fatal for the
// operation; never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "not authorized"
	}
	return fmt.Sprintf("not authorized: %s", e.Reason)
}

// TemplateNotFoundError means the backend offers no rule template with
// the required name. A fatal precondition for rule creation; the create
// is aborted before any backend mutation.
type TemplateNotFoundError struct {
	Name string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("rule template %q not found", e.Name)
}

// BackendRequestError wraps a failed backend call. No automatic retry:
// the error surfaces to the caller, and only the polling loop's own
// re-fetch acts as an implicit retry for transient read failures.
type BackendRequestError struct {
	Op  string
	Err error
}

func (e *BackendRequestError) Error() string {
	return fmt.Sprintf("backend request %s failed: %v", e.Op, e.Err)
}

func (e *BackendRequestError) Unwrap() error {
	return e.Err
}
