package httpapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

var registerOnce sync.Once

var customValidations = map[string]validator.Func{
	"hhmm":    validateHHMM,
	"weekday": validateWeekday,
	"ymd":     validateDate,
}

// registerValidators добавляет в валидатор gin теги hhmm, weekday и ymd.
// Без них биндинг запросов не работает, поэтому ошибка регистрации фатальна.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic(fmt.Sprintf("unexpected gin validator engine %T", binding.Validator.Engine()))
		}
		if err := registerTags(v, customValidations); err != nil {
			panic(err)
		}
	})
}

func registerTags(v *validator.Validate, tags map[string]validator.Func) error {
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation %q: %w", tag, err)
		}
	}
	return nil
}

// validateHHMM строго "HH:MM"
func validateHHMM(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != len(model.TimeLayout) {
		return false
	}
	_, err := time.Parse(model.TimeLayout, s)
	return err == nil
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, ok := model.ParseWeekday(fl.Field().String())
	return ok
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(model.DateLayout, fl.Field().String())
	return err == nil
}
