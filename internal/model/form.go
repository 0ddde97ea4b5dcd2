package model

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/autograder/internal/answers"
)

// MaxDocuments is the largest number of exam files accepted in one session.
const MaxDocuments = 30

// SessionForm is the input for a new grading session, from the web form or
// the grade command. Field names double as i18n message IDs.
type SessionForm struct {
	CourseName     string  `validate:"required,max=200"`
	CourseCode     string  `validate:"required,max=50"`
	AnswerKey      string  `validate:"required,answerkey"`
	TotalQuestions int     `validate:"gte=0,lte=9999"`
	PassMark       float64 `validate:"gt=0,lte=20"`
	Strategy       string  `validate:"required,oneof=auto text ocr llm marks"`
	Documents      int     `validate:"gte=1,lte=30"`
}

// UserForm is the input for creating a user.
type UserForm struct {
	Username    string `validate:"required,min=3,max=64,alphanum"`
	DisplayName string `validate:"max=200"`
	Password    string `validate:"required,min=8"`
	Role        string `validate:"required,oneof=teacher admin"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("answerkey", func(fl validator.FieldLevel) bool {
			return len(answers.Parse(fl.Field().String())) > 0
		})
	})
	return validate
}

// Validate checks the form against its struct tags.
func (f SessionForm) Validate() error {
	return validatorInstance().Struct(f)
}

// Validate checks the form against its struct tags.
func (f UserForm) Validate() error {
	return validatorInstance().Struct(f)
}

// InvalidFields returns the names of the fields that failed validation, in
// declaration order. It returns nil for errors that are not validation errors.
func InvalidFields(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field())
	}
	return fields
}
