// Package validate 注册业务自定义校验标签
package validate

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"campusconnect/backend/internal/model"
)

// ClockLayout 日程时间格式（24 小时制 HH:MM）
const ClockLayout = "15:04"

// Register 向 validator 实例注册自定义标签
func Register(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"clock":        validateClock,
		"weekday":      validateWeekday,
		"routine_type": validateRoutineType,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("注册校验标签 %s 失败: %w", tag, err)
		}
	}

	// 错误信息中使用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	return nil
}

// RegisterGin 将自定义标签注册到 gin 默认的绑定校验器
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("gin 校验引擎不是 validator.Validate")
	}
	return Register(v)
}

// ParseClock 将 "HH:MM" 或 "HH:MM:SS" 解析为当天分钟数
func ParseClock(s string) (int, error) {
	if len(s) == len("15:04:05") {
		s = s[:5]
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("时间格式应为 HH:MM: %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock 将分钟数格式化为 "HH:MM"
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock 统一为 "HH:MM"（数据库 TIME 读出为 "HH:MM:SS"）
func NormalizeClock(s string) string {
	m, err := ParseClock(s)
	if err != nil {
		return s
	}
	return FormatClock(m)
}

func validateClock(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != len(ClockLayout) {
		return false
	}
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}

func validateWeekday(fl validator.FieldLevel) bool {
	return model.IsWeekday(fl.Field().String())
}

func validateRoutineType(fl validator.FieldLevel) bool {
	return model.RoutineTypes[fl.Field().String()]
}
