package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func normalize(in Input) Input {
	in.UserID = strings.TrimSpace(in.UserID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	in.CouponCode = strings.TrimSpace(in.CouponCode)
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	in.DeliveryPhone = strings.TrimSpace(in.DeliveryPhone)
	in.DeliveryNotes = strings.TrimSpace(in.DeliveryNotes)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func (s *Service) validateInput(in Input) error {
	var fields []FieldError
	if in.Cart == nil || in.Cart.IsEmpty() {
		fields = append(fields, FieldError{Field: "cart", Reason: "cart is empty"})
	}

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate input")
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Reason: reason(fe)})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}
