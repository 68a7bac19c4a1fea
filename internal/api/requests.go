package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/homesync/internal/model"
)

// CreateMessageRequest is the body of POST /api/households/:id/messages.
type CreateMessageRequest struct {
	Content     string             `json:"content" validate:"required_if=MessageType text,max=2000"`
	MessageType model.MessageType  `json:"message_type" validate:"required,oneof=text poll"`
	RepliedTo   *string            `json:"replied_to,omitempty" validate:"omitempty,min=1"`
	Poll        *CreatePollRequest `json:"poll,omitempty" validate:"required_if=MessageType poll"`
}

// CreatePollRequest describes a poll attached to a new message.
type CreatePollRequest struct {
	Question       string   `json:"question" validate:"required,max=300"`
	Options        []string `json:"options" validate:"min=2,max=10,dive,required,max=100"`
	MultipleChoice bool     `json:"multiple_choice"`
}

// VoteRequest is the body of POST /api/polls/:id/vote.
type VoteRequest struct {
	Options []int `json:"options" validate:"min=1,unique,dive,gte=0"`
}

// Validate checks the request and returns a *ValidationError keyed by
// JSON field path.
func (r CreateMessageRequest) Validate() error {
	return validateStruct(r)
}

// Validate checks the request and returns a *ValidationError.
func (r VoteRequest) Validate() error {
	return validateStruct(r)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

func validateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating request: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		fields[key] = fieldMessage(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "needs at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param() + " long"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "unique":
		return "must not repeat an entry"
	case "gte":
		return "must be " + fe.Param() + " or greater"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
