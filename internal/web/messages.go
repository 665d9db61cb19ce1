package web

// messages.go turns errors into user-facing messages with a support code.
//
// # Error Codes Reference
//
// Domain errors (matched with errors.Is):
//
//	ARF001 - Not a quantity: a value has no unit, an unknown unit or
//	         mismatched bin arrays (400)
//	ARF002 - Unknown instrument: no parametrization for the instrument (400)
//	ARF003 - Missing ARF content: extension, column or header key absent (422)
//	ARF004 - Table not found: no catalog entry with this id (404)
//	ARF005 - Invalid FITS: the upload is not a FITS file (422)
//	ARF006 - Invalid header value: text that is not printable ASCII or a
//	         number that is not finite (400)
//
// Request and infrastructure errors (matched by substring, case-insensitive):
//
//	FILE001 - File too large (413)
//	FILE004 - No file provided (400)
//	REQ001  - Invalid id (400)
//	REQ002  - Invalid request body (400)
//	UPL002  - Too many uploads in progress (503)
//	DB004   - Connection refused (503)
//	DB006   - Timeout (504)
//
//	ERR000  - Anything else (500). The technical error is in the server log.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bsipocz/gammapy/internal/catalog"
	"github.com/bsipocz/gammapy/internal/fits"
	"github.com/bsipocz/gammapy/internal/irf"
	"github.com/bsipocz/gammapy/internal/units"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int    // HTTP status
}

type sentinelMessage struct {
	targets []error
	msg     UserMessage
}

// sentinelMessages is checked before errorPatterns; first match wins.
var sentinelMessages = []sentinelMessage{
	{
		targets: []error{irf.ErrNotQuantity, irf.ErrShape, units.ErrNoUnit, units.ErrUnknownUnit},
		msg: UserMessage{
			Message: "Values must be quantities with matching bins",
			Action:  "Give every energy and area with a unit, e.g. \"1 TeV\" or \"100 m2\"",
			Code:    "ARF001",
			Status:  http.StatusBadRequest,
		},
	},
	{
		targets: []error{irf.ErrUnknownInstrument},
		msg: UserMessage{
			Message: "Unknown instrument",
			Action:  "Use one of HESS, HESS2, CTA",
			Code:    "ARF002",
			Status:  http.StatusBadRequest,
		},
	},
	{
		targets: []error{fits.ErrValue},
		msg: UserMessage{
			Message: "Header values cannot be stored in an ARF file",
			Action:  "Use printable ASCII for telescope, instrument and filter names and finite thresholds",
			Code:    "ARF006",
			Status:  http.StatusBadRequest,
		},
	},
	{
		targets: []error{catalog.ErrNotFound},
		msg: UserMessage{
			Message: "Effective area table not found",
			Action:  "Check the table id or list tables at /api/arf",
			Code:    "ARF004",
			Status:  http.StatusNotFound,
		},
	},
	{
		targets: []error{fits.ErrNotFound},
		msg: UserMessage{
			Message: "File is missing required ARF content",
			Action:  "Upload an ARF with a SPECRESP extension and LO_THRES/HI_THRES keys",
			Code:    "ARF003",
			Status:  http.StatusUnprocessableEntity,
		},
	},
	{
		targets: []error{fits.ErrFormat},
		msg: UserMessage{
			Message: "File is not a valid FITS file",
			Action:  "Upload an OGIP ARF file",
			Code:    "ARF005",
			Status:  http.StatusUnprocessableEntity,
		},
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps lower-case substrings of error text to messages.
var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg:     fileTooLarge,
	},
	{
		pattern: "file too large",
		msg:     fileTooLarge,
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Attach an ARF file in the \"file\" form field",
			Code:    "FILE004",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "invalid id",
		msg: UserMessage{
			Message: "Invalid table id",
			Action:  "Table ids are UUIDs",
			Code:    "REQ001",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "Invalid request",
			Action:  "Check the request parameters",
			Code:    "REQ002",
			Status:  http.StatusBadRequest,
		},
	},
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
			Status:  http.StatusServiceUnavailable,
		},
	},
	{
		pattern: "deadline exceeded",
		msg:     timedOut,
	},
	{
		pattern: "timeout",
		msg:     timedOut,
	},
}

var (
	fileTooLarge = UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Upload a smaller file",
		Code:    "FILE001",
		Status:  http.StatusRequestEntityTooLarge,
	}

	timedOut = UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB006",
		Status:  http.StatusGatewayTimeout,
	}

	defaultMessage = UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
		Status:  http.StatusInternalServerError,
	}
)

// MapError converts a technical error to a user-friendly message.
// A nil error yields the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		for _, target := range s.targets {
			if errors.Is(err, target) {
				return s.msg
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}
	return defaultMessage
}
