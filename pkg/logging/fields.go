package logging

import "log/slog"

// Domain identifiers

func Order(id string) slog.Attr {
	return slog.String("order_id", id)
}

func Branch(id string) slog.Attr {
	return slog.String("branch_id", id)
}

func Conn(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func Group(name string) slog.Attr {
	return slog.String("group", name)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", err.Error())
}
