package transcoder

// Result is the dynamic form of result<ok, err>.
type Result struct {
	Value any
	IsErr bool
}

func Ok(v any) Result {
	return Result{Value: v}
}

func Err(v any) Result {
	return Result{Value: v, IsErr: true}
}
