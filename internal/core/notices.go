package core

import (
	"errors"
	"fmt"
	"strings"
)

// Notice titles and messages shown to the user.
const (
	TitleSuccess          = "Success"
	TitleValidationErrors = "Validation Errors"
	TitleError            = "Error"

	MsgAllRowsUploaded     = "All rows uploaded successfully."
	MsgRecordsSaved        = "Records saved!"
	ResolutionFailedPrefix = "Failed to resolve ACN/Client Owner IDs: "
	GenericSaveFailure     = "An error occurred while saving records."
)

func rowErrorsMessage(rows []int) string {
	lines := make([]string, len(rows))
	for i, n := range rows {
		lines[i] = fmt.Sprintf("Row %d has validation errors.", n)
	}
	return strings.Join(lines, "\n")
}

// importNotice summarizes a finished import.
func importNotice(invalid []int) Notice {
	if len(invalid) > 0 {
		return Notice{Title: TitleValidationErrors, Message: rowErrorsMessage(invalid), Severity: SeverityError}
	}
	return Notice{Title: TitleSuccess, Message: MsgAllRowsUploaded, Severity: SeveritySuccess}
}

func resolutionNotice(err error) Notice {
	msg := err.Error()
	var re *ResolutionError
	if errors.As(err, &re) {
		msg = re.Err.Error()
	}
	return Notice{Title: TitleError, Message: ResolutionFailedPrefix + msg, Severity: SeverityError}
}

func commitRefusedNotice(ce *CommitError) Notice {
	return Notice{Title: TitleValidationErrors, Message: rowErrorsMessage(ce.RowNumbers()), Severity: SeverityError}
}

// saveMessage is the collaborator's message when it gave one.
func saveMessage(err error) string {
	var se *SaveError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return GenericSaveFailure
}
