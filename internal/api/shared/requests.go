package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes bounds the size of a JSON request body.
const MaxBodyBytes = 64 << 10

// ErrTrailingData is returned when a body holds more than one JSON value.
var ErrTrailingData = errors.New("request body must contain a single JSON object")

var validate = validator.New()

// DecodeJSON decodes the request body into v. Unknown fields, bodies larger
// than MaxBodyBytes and trailing values are rejected. An empty body leaves
// v untouched.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}

// ValidateRequest runs v's own Validate method if it has one and the struct
// tag validator otherwise.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}
