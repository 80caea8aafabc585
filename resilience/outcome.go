package resilience

// Outcome is the settled result of an operation: either a value or an error,
// never both.
type Outcome[O any] struct {
	Value O
	Err   error
}

// Ok returns a successful outcome.
func Ok[O any](v O) Outcome[O] {
	return Outcome[O]{Value: v}
}

// Fail returns a failed outcome. A nil err is treated as ErrCancelled so a
// failed outcome always carries an error.
func Fail[O any](err error) Outcome[O] {
	if err == nil {
		err = ErrCancelled
	}
	return Outcome[O]{Err: err}
}

// From builds an outcome from a (value, error) pair, dropping the value on
// error.
func From[O any](v O, err error) Outcome[O] {
	if err != nil {
		return Fail[O](err)
	}
	return Ok(v)
}

// OK reports whether the outcome succeeded.
func (o Outcome[O]) OK() bool {
	return o.Err == nil
}

// Kind classifies the outcome's error.
func (o Outcome[O]) Kind() ErrorKind {
	return KindOf(o.Err)
}

// Get returns the value and error as a pair.
func (o Outcome[O]) Get() (O, error) {
	return o.Value, o.Err
}
