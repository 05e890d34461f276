package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

var ErrInvalidParameters = errors.New("禁忌搜索参数不合法")

var (
	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
	validatorErr  error
)

func paramValidator() (*validator.Validate, ut.Translator, error) {
	validatorOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		zh := zh.New()
		uni := ut.New(zh, zh)
		trans, ok := uni.GetTranslator("zh")
		if !ok {
			validatorErr = errors.New("无法获取中文翻译器")
			return
		}
		if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
			validatorErr = err
			return
		}
		translator = trans
	})

	return validate, translator, validatorErr
}

// Validate 校验参数，只返回第一个错误的中文描述
func (p *Parameters) Validate() error {
	v, trans, err := paramValidator()
	if err != nil {
		return err
	}

	if err := v.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidParameters, verrs[0].Translate(trans))
		}
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	return nil
}
