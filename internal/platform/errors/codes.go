// Package errors provides structured error handling with machine codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Ledger errors
	CodeLedgerIO    Code = "LEDGER_IO"
	CodeLedgerParse Code = "LEDGER_PARSE"

	// Event errors
	CodeEventTargetInvalid Code = "EVENT_TARGET_INVALID"
	CodeEventPayloadEmpty  Code = "EVENT_PAYLOAD_EMPTY"
	CodeEventAmountInvalid Code = "EVENT_AMOUNT_INVALID"

	// Request errors
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Dependency errors
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
)

// HTTPStatus maps an error code to an HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeEventTargetInvalid:
		return http.StatusNotFound
	case CodeEventPayloadEmpty, CodeEventAmountInvalid, CodeRequestInvalid:
		return http.StatusBadRequest
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeLedgerIO, CodeLedgerParse, CodeUnknown:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
