// Package validation validates configuration structs and request bodies.
//
// Struct tag validation uses go-playground/validator and reports failures as
// an INVALID_INPUT AppError whose details list every failing field:
//
//	type AddRequest struct {
//	    Domain string `json:"domain" validate:"required"`
//	}
//	err := validation.Validate(req)
//
// Programmatic checks collect errors the same way:
//
//	err := validation.New().Required("participantId", id).OneOf("scope", s, scopes).Err()
package validation
