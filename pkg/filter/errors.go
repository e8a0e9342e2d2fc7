package filter

// InternalError is an unexpected analysis failure. Its message never
// carries the cause; use Unwrap or logs for details.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return "analysis failed"
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
