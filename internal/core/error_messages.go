// Package core error code reference.
//
// When users encounter errors, they can quote the code to support staff.
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid request: a required field is missing or malformed
//	REQ002 - Invalid name: a table, column or file name contains illegal characters
//	REQ003 - Unsupported selection: more than two tables were selected
//	REQ004 - No columns: the operation needs at least one column
//	REQ005 - Invalid delimiter
//
// # ClickHouse Errors (CH001-CH099)
//
//	CH001 - Connection failed: the server could not be reached
//	CH002 - Authentication failed: credentials or token rejected
//	CH003 - Token expired
//	CH004 - Table not found
//	CH005 - Query timed out
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported file type
//	FILE003 - File not found
//	FILE004 - No file provided
//	FILE005 - Empty file
//	FILE006 - Unknown column
//
// # Transfer Errors (XFER001-XFER099)
//
//	XFER001 - Partial transfer: some rows were committed before the failure
//	XFER002 - System busy: too many transfers in progress
//	XFER003 - Request cancelled
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Patterns are matched case-insensitively with strings.Contains, first match
// wins. When nothing matches, the error's Kind picks the message.
package core

import (
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are checked in order. Specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Transfer (XFER001-XFER003)
	// =========================================================================
	{
		pattern: "rows committed",
		msg: UserMessage{
			Message: "The transfer stopped part way through",
			Action:  "Rows already written were kept. Review the target before retrying",
			Code:    "XFER001",
		},
	},
	{
		pattern: "too many transfers",
		msg: UserMessage{
			Message: "Too many transfers in progress",
			Action:  "Please wait a moment and try again",
			Code:    "XFER002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "XFER003",
		},
	},

	// =========================================================================
	// ClickHouse (CH001-CH005)
	// =========================================================================
	{
		pattern: "token expired",
		msg: UserMessage{
			Message: "The access token has expired",
			Action:  "Request a new token and try again",
			Code:    "CH003",
		},
	},
	{
		pattern: "authentication failed",
		msg: UserMessage{
			Message: "ClickHouse rejected the credentials",
			Action:  "Check the user, password or token",
			Code:    "CH002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to ClickHouse",
			Action:  "Check the host and port, then try again",
			Code:    "CH001",
		},
	},
	{
		pattern: "no such host",
		msg: UserMessage{
			Message: "Unable to connect to ClickHouse",
			Action:  "Check the host and port, then try again",
			Code:    "CH001",
		},
	},
	{
		pattern: "table not found",
		msg: UserMessage{
			Message: "Table not found",
			Action:  "Verify the table name is correct",
			Code:    "CH004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The request timed out",
			Action:  "Select fewer rows or try again later",
			Code:    "CH005",
		},
	},

	// =========================================================================
	// Files (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Unsupported file type",
			Action:  "Use .csv, .tsv, .txt or .xlsx",
			Code:    "FILE002",
		},
	},
	{
		pattern: "file not found",
		msg: UserMessage{
			Message: "File not found",
			Action:  "Upload the file first, then retry",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a file with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unknown column",
		msg: UserMessage{
			Message: "A requested column is not in the file",
			Action:  "Check the column names against the file header",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Request (REQ002, REQ005)
	// =========================================================================
	{
		pattern: "invalid identifier",
		msg: UserMessage{
			Message: "A name contains illegal characters",
			Action:  "Use letters, digits and underscores only",
			Code:    "REQ002",
		},
	},
	{
		pattern: "delimiter",
		msg: UserMessage{
			Message: "Invalid delimiter",
			Action:  "Provide a single separator character such as , ; or a tab",
			Code:    "REQ005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// kindMessages is the fallback when no pattern matches.
var kindMessages = map[Kind]UserMessage{
	KindInvalidInput: {
		Message: "The request is invalid",
		Action:  "Check the request fields and try again",
		Code:    "REQ001",
	},
	KindUnsupportedTopology: {
		Message: "Only one table or two joined tables can be selected",
		Action:  "Select at most two tables",
		Code:    "REQ003",
	},
	KindNoColumnsSelected: {
		Message: "No columns were selected",
		Action:  "Select at least one column",
		Code:    "REQ004",
	},
	KindConnection: {
		Message: "Unable to connect to ClickHouse",
		Action:  "Check the host and port, then try again",
		Code:    "CH001",
	},
	KindAuth: {
		Message: "ClickHouse rejected the credentials",
		Action:  "Check the user, password or token",
		Code:    "CH002",
	},
	KindNotFound: {
		Message: "The requested table or file does not exist",
		Action:  "Verify the name is correct",
		Code:    "FILE003",
	},
	KindPartialTransfer: {
		Message: "The transfer stopped part way through",
		Action:  "Rows already written were kept. Review the target before retrying",
		Code:    "XFER001",
	},
	KindBusy: {
		Message: "Too many transfers in progress",
		Action:  "Please wait a moment and try again",
		Code:    "XFER002",
	},
}

// defaultMessage is returned when neither a pattern nor a kind matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	err := E(KindNotFound, "preview", errors.New("file not found: a.csv"))
//	msg := MapError(err)
//	// msg.Code == "FILE003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if msg, ok := kindMessages[KindOf(err)]; ok {
		return msg
	}
	return defaultMessage
}
