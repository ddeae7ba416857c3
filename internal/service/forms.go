package service

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/UkralStul/blog-service/internal/media"
)

const (
	msgRequired      = "This field is required."
	msgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
)

// PostInput is the post form. An empty GroupID leaves the post without a
// group; a nil Image keeps the current image on edit.
type PostInput struct {
	Text    string        `form:"text" validate:"required"`
	GroupID string        `form:"group" validate:"omitempty,max=36"`
	Image   *media.Upload `form:"image" validate:"-"`
}

// CommentInput is the comment form.
type CommentInput struct {
	Text string `form:"text" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct validation and collects failures into ve.
func check(ve *ValidationError, in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("failed to validate form: %w", err)
	}
	for _, fe := range verrs {
		ve.add(fe.Field(), fieldMessage(fe))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "max":
		return msgInvalidChoice
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}

func (in *PostInput) normalize() {
	in.Text = strings.TrimSpace(in.Text)
	in.GroupID = strings.TrimSpace(in.GroupID)
}

func (in *CommentInput) normalize() {
	in.Text = strings.TrimSpace(in.Text)
}
