package model

import (
	"sync"

	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向gin的校验器注册自定义规则
// dockind: 字段必须是支持的文档类型
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("dockind", validateDocKind)
	})
}

func validateDocKind(fl validator.FieldLevel) bool {
	_, err := document.ParseKind(fl.Field().String())
	return err == nil
}
