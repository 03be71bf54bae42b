package validation

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/kbcstorage/storage-go/errors"
)

var (
	once     sync.Once
	validate *StructValidator
)

// StructValidator validates option and config structs using their
// `validate` tags and reports failures as translated messages.
type StructValidator struct {
	uni       *ut.UniversalTranslator
	validator *validator.Validate
}

// New creates a StructValidator with English translations registered.
func New() (*StructValidator, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	v := validator.New(
		validator.WithRequiredStructEnabled(),
	)

	trans, _ := uni.GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("failed to register translations: %w", err)
	}

	return &StructValidator{
		uni:       uni,
		validator: v,
	}, nil
}

// Validate checks s and returns an error wrapping errors.ErrInvalidInput
// whose message lists the failing fields.
func (sv *StructValidator) Validate(op string, s any) error {
	err := sv.validator.Struct(s)
	if err == nil {
		return nil
	}

	var valErr validator.ValidationErrors
	if stderrors.As(err, &valErr) {
		trans, _ := sv.uni.GetTranslator("en")
		text, mErr := sonic.Marshal(valErr.Translate(trans))
		if mErr != nil {
			return errors.NewError(op, errors.ErrInvalidInput).WithMessage(valErr.Error())
		}
		return errors.NewError(op, errors.ErrInvalidInput).WithMessage(string(text))
	}

	return errors.NewError(op, errors.ErrInvalidInput).WithMessage(err.Error())
}

// Struct validates s with the shared StructValidator.
func Struct(op string, s any) error {
	once.Do(func() {
		var err error
		validate, err = New()
		if err != nil {
			panic(fmt.Sprintf("failed to create validator: %v", err))
		}
	})
	return validate.Validate(op, s)
}
