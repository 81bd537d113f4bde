package dto

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册自定义校验标签
//   - date: YYYY-MM-DD 日历日
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation("date", validateDate)
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}
