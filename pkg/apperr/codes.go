package apperr

import "net/http"

// Kind classifies an error for the boundary layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindBusinessRule
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBusinessRule:
		return http.StatusConflict
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Code is a stable machine-readable error code.
type Code string

const (
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Shopping sessions
	CodeActiveSessionExists     Code = "ACTIVE_SESSION_EXISTS"
	CodeSessionAlreadyCompleted Code = "SESSION_ALREADY_COMPLETED"
	CodeSessionAlreadyAbandoned Code = "SESSION_ALREADY_ABANDONED"
	CodeSessionNotActive        Code = "SESSION_NOT_ACTIVE"
	CodeSessionNotOwned         Code = "SESSION_NOT_OWNED"
	CodeInvalidTransition       Code = "INVALID_STATUS_TRANSITION"
	CodeSessionNotFound         Code = "SESSION_NOT_FOUND"

	// Ingredients
	CodeIngredientNotFound  Code = "INGREDIENT_NOT_FOUND"
	CodeIngredientNameTaken Code = "INGREDIENT_NAME_TAKEN"
	CodePhotoNotFound       Code = "PHOTO_NOT_FOUND"
	CodePhotosDisabled      Code = "PHOTOS_DISABLED"

	// Reference data
	CodeCategoryNotFound Code = "CATEGORY_NOT_FOUND"
	CodeUnitNotFound     Code = "UNIT_NOT_FOUND"
)

// Validation rules reported alongside CodeValidation.
const (
	RuleRequired      = "required"
	RuleTooLong       = "too_long"
	RuleInvalidFormat = "invalid_format"
	RuleOutOfRange    = "out_of_range"
	RuleInvalidValue  = "invalid_value"
)
