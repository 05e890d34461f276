package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParametersAreValid(t *testing.T) {
	assert.NoError(t, DefaultParameters().Validate())
}

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Parameters)
	}{
		{"零迭代", func(p *Parameters) { p.MaxIterations = 0 }},
		{"禁忌期上限小于下限", func(p *Parameters) { p.MinTenure, p.MaxTenure = 8, 3 }},
		{"比例超过 1", func(p *Parameters) { p.NoImprovementRatio = 1.5 }},
		{"未知特赦准则", func(p *Parameters) { p.Aspiration = "always" }},
		{"分项特赦缺少分项名", func(p *Parameters) { p.Aspiration = AspirationComponent }},
		{"日终时间格式错误", func(p *Parameters) { p.DayEnd = "17 点" }},
		{"未知分散策略", func(p *Parameters) { p.Diversification.Strategy = "shake" }},
		{"没有工作协程", func(p *Parameters) { p.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters()
			tt.mutate(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParameters)
		})
	}
}

func TestParametersValidateAcceptsOptionalFields(t *testing.T) {
	p := DefaultParameters()
	p.DayEnd = "17:30:00"
	p.Aspiration = AspirationComponent
	p.AspirationComponent = "urgency"
	p.MinTenure, p.MaxTenure = 3, 8

	assert.NoError(t, p.Validate())
}
