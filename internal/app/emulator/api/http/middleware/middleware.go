// Package middleware собирает huma-мидлвари для обработчиков эмулятора.
package middleware

import (
	"github.com/danielgtaylor/huma/v2"
)

// Container накапливает мидлвари одного обработчика. Каждый обработчик
// эмулятора получает собственный набор через GetAllAndClear, после чего
// контейнер заполняется заново для следующего.
type Container struct {
	middlewares huma.Middlewares
}

// NewContainer создает пустой контейнер.
func NewContainer() *Container {
	return &Container{}
}

// Add добавляет мидлвари в порядке их будущего выполнения.
func (mc *Container) Add(middlewares ...func(ctx huma.Context, next func(huma.Context))) {
	mc.middlewares = append(mc.middlewares, middlewares...)
}

// GetAllAndClear отдает накопленный набор и опустошает контейнер.
func (mc *Container) GetAllAndClear() huma.Middlewares {
	result := mc.middlewares
	mc.middlewares = nil
	return result
}
