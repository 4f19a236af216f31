package catalog

import (
	"errors"
	"fmt"
	"strings"

	"news_bot/internal/locator"

	"github.com/go-playground/validator/v10"
)

// newValidator 注册清单使用的自定义校验规则
func newValidator() *validator.Validate {
	validate := validator.New()

	// 模板必须包含日期占位符
	_ = validate.RegisterValidation("datetemplate", func(fl validator.FieldLevel) bool {
		return strings.Contains(fl.Field().String(), DatePlaceholder)
	})

	// 频道引用：@handle 或邀请链接
	_ = validate.RegisterValidation("channelref", func(fl validator.FieldLevel) bool {
		ref := strings.TrimSpace(fl.Field().String())
		if _, ok := locator.ParseInvite(ref); ok {
			return true
		}
		return strings.HasPrefix(ref, "@") && len(ref) > 1 && !strings.ContainsAny(ref, " /")
	})

	return validate
}

func validateStruct(c *Catalog) error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed '%s'", fieldErr.Namespace(), fieldErr.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(messages, "; "))
}
