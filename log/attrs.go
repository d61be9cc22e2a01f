package log

import "log/slog"

func RunID[T ~string](id T) slog.Attr {
	return slog.String("run_id", string(id))
}

func NodeID[T ~string](id T) slog.Attr {
	return slog.String("node_id", string(id))
}

func Variant[T ~string](variant T) slog.Attr {
	return slog.String("variant", string(variant))
}

func Token[T ~string](token T) slog.Attr {
	return slog.String("token", string(token))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
