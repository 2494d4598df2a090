// Package validation provides struct tag validation for request payloads.
//
// Fields are validated with tags like `validate:"required,email,max=255"`.
// Field names in error messages use the json tag when present, falling back
// to the snake_cased Go field name.
//
//	type CreateUserBody struct {
//	    Name  string `json:"name" validate:"required,min=2"`
//	    Email string `json:"email" validate:"required,email"`
//	}
//	errs := validation.Check(body)
package validation
