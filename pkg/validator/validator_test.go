package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `mapstructure:"name" validate:"required"`
	Burst int    `mapstructure:"burst" validate:"gte=1"`
	Kind  string `json:"kind" validate:"omitempty,even_len"`
}

func newTestValidator(t *testing.T) *Validator {
	v := New()
	err := v.RegisterValidationWithTranslation("even_len", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String())%2 == 0
	}, map[string]string{
		LangEN: "{0} must have an even length",
		LangZH: "{0}长度必须为偶数",
	})
	require.NoError(t, err)
	return v
}

func TestStruct(t *testing.T) {
	v := newTestValidator(t)

	assert.Nil(t, v.Struct(sample{Name: "a", Burst: 1}, LangEN))

	verrs := v.Struct(sample{Burst: 0, Kind: "abc"}, LangEN)
	require.True(t, verrs.HasErrors())
	assert.Equal(t, 3, verrs.Count())
	assert.Equal(t, []string{"name is a required field"}, verrs.ForField("sample.name"))
	assert.Equal(t, []string{"kind must have an even length"}, verrs.ForField("sample.kind"))
	assert.Contains(t, verrs.Error(), "validation failed: ")
}

func TestStructChinese(t *testing.T) {
	v := newTestValidator(t)
	verrs := v.Struct(sample{Burst: 1, Kind: "abc"}, LangZH)
	require.True(t, verrs.HasErrors())
	assert.Equal(t, []string{"kind长度必须为偶数"}, verrs.ForField("sample.kind"))
}

// plain 只使用内置规则，Errors 走全局实例。
type plain struct {
	Name  string `mapstructure:"name" validate:"required"`
	Burst int    `mapstructure:"burst" validate:"gte=1"`
}

func TestErrors(t *testing.T) {
	assert.Nil(t, Errors(plain{Name: "x", Burst: 2}))
	errs := Errors(plain{Burst: 2})
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "name is a required field")
}
