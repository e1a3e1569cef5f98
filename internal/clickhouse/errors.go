package clickhouse

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/JonMunkholm/chflat/internal/core"
)

// Server exception codes that map to a specific kind.
const (
	codeUnknownTable         = 60
	codeUnknownDatabase      = 81
	codeUnknownUser          = 192
	codeRequiredPassword     = 194
	codeWrongPassword        = 193
	codeAccessDenied         = 497
	codeAuthenticationFailed = 516
)

// classify wraps a driver error with the kind the web layer maps to a status.
// Native exceptions are matched by code, the HTTP interface only gives text.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return core.E(core.KindInternal, op, err)
	}
	return core.E(kindOf(err), op, err)
}

func kindOf(err error) core.Kind {
	var ex *clickhouse.Exception
	if errors.As(err, &ex) {
		switch ex.Code {
		case codeAuthenticationFailed, codeUnknownUser, codeWrongPassword, codeRequiredPassword, codeAccessDenied:
			return core.KindAuth
		case codeUnknownTable, codeUnknownDatabase:
			return core.KindNotFound
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.DeadlineExceeded) {
		return core.KindConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "code: 516", "code: 192", "code: 193", "code: 194", "code: 497",
		"authentication failed", "[http 401]", "[http 403]"):
		return core.KindAuth
	case containsAny(msg, "code: 60.", "code: 81.", "doesn't exist", "does not exist"):
		return core.KindNotFound
	case containsAny(msg, "connection refused", "no such host", "connection reset", "i/o timeout", "eof"):
		return core.KindConnection
	}
	return core.KindInternal
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
