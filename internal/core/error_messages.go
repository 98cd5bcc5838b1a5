package core

// error_messages.go maps technical errors to messages a user can act on.
//
// Every message carries a code that users can quote to support:
//
//	DB001-DB007     database constraints and connectivity
//	VAL001-VAL007   field and record validation
//	FILE001-FILE006 uploaded file handling
//	IMP001-IMP007   import sessions
//	RES001          owner resolution
//	SAV001          saving records
//	AGT001-AGT002   chat agent
//	RATE001         request throttling
//	ERR000          anything not recognised; check the logs
//
// Typed errors and sentinels are matched first with errors.As/errors.Is.
// Anything else falls through to case-insensitive substring patterns where
// the first match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{ErrSessionNotFound, UserMessage{"Import session not found", "The session may have expired. Please start a new import", "IMP001"}},
	{ErrSessionBusy, UserMessage{"This import is still being processed", "Wait for the current import or save to finish, then try again", "IMP002"}},
	{ErrTooManyImports, UserMessage{"Too many imports in progress", "Please wait a moment and try again", "IMP003"}},
	{ErrUnknownProfile, UserMessage{"This import type is not configured", "Choose one of the available templates", "IMP004"}},
	{ErrRecordNotFound, UserMessage{"The row no longer exists", "Refresh the table and try again", "IMP005"}},
	{ErrUnknownField, UserMessage{"This column cannot be edited", "Edit one of the template columns instead", "VAL007"}},
	{ErrNothingToCommit, UserMessage{"There are no rows to save", "Import a file before saving", "VAL005"}},
	{ErrFileTooLarge, UserMessage{"File exceeds maximum size limit", "Split the file into smaller files", "FILE001"}},
	{ErrUnsupportedFormat, UserMessage{"Unsupported file type", "Upload an .xlsx or .csv file based on the template", "FILE002"}},
	{ErrNoFile, UserMessage{"No file was selected", "Please select a spreadsheet to upload", "FILE004"}},
	{ErrEmptyFile, UserMessage{"The uploaded file is empty", "Please upload a file with a header row and data rows", "FILE005"}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this ID already exists", "Remove the duplicate rows and save again", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Check the owner and dependency columns", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP006"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "IMP007"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},

	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"please select a valid value", UserMessage{"Value is not in the allowed list", "Pick one of the values offered by the template", "VAL006"}},
	{"validation failed", UserMessage{"The request is missing required values", "Check the request fields and try again", "VAL002"}},

	{"encoding error", UserMessage{"File contains invalid characters", "Save the file as UTF-8", "FILE003"}},
	{"decode spreadsheet", UserMessage{"The spreadsheet could not be read", "Open the file in a spreadsheet tool, save it again and retry", "FILE006"}},
	{"no header row", UserMessage{"The uploaded file is empty", "Please upload a file with a header row and data rows", "FILE005"}},

	{"agent unavailable", UserMessage{"The assistant is unavailable", "Please try again later", "AGT001"}},
	{"empty chat message", UserMessage{"Message cannot be empty", "Type a message and send it again", "AGT002"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(ErrSessionBusy)
//	// msg.Code == "IMP002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		return UserMessage{
			Message: fmt.Sprintf("%d rows have missing or invalid mandatory fields", len(commitErr.Rows)),
			Action:  "Fix the highlighted rows and save again",
			Code:    "VAL003",
		}
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return UserMessage{
			Message: "Failed to resolve ACN/Client Owner IDs",
			Action:  "Check the owner names and import the file again",
			Code:    "RES001",
		}
	}

	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		msg := saveErr.Message
		if msg == "" {
			msg = GenericSaveFailure
		}
		return UserMessage{Message: msg, Action: "Correct the rows and save again", Code: "SAV001"}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific catalogue entry
// rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
