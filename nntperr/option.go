package nntperr

// Option is an Error option function
type Option func(*Error)

func WithMessage(msg string) Option { return func(e *Error) { e.Message = msg } }
func WithOp(op string) Option       { return func(e *Error) { e.Op = op } }
func WithAddr(addr string) Option   { return func(e *Error) { e.Addr = addr } }
func WithCode(code int) Option      { return func(e *Error) { e.Code = code } }
func WithCause(err error) Option    { return func(e *Error) { e.Err = err } }
