package jac

import (
	"go.uber.org/zap"

	"github.com/wippyai/jac/codegen"
	"github.com/wippyai/jac/engine"
	"github.com/wippyai/jac/jacrt"
	"github.com/wippyai/jac/translate"
)

// SetLogger configures the logger of every package in the pipeline. Each
// package logs under its own name.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	translate.SetLogger(l.Named("translate"))
	codegen.SetLogger(l.Named("codegen"))
	jacrt.SetLogger(l.Named("jacrt"))
	engine.SetLogger(l.Named("engine"))
}
