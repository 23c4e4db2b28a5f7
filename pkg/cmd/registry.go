// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/expression"
	"github.com/caseflowhq/caseflow/pkg/registry"
	"github.com/caseflowhq/caseflow/pkg/steps/apicall"
	"github.com/caseflowhq/caseflow/pkg/steps/approval"
	"github.com/caseflowhq/caseflow/pkg/steps/branch"
	"github.com/caseflowhq/caseflow/pkg/steps/custom"
	"github.com/caseflowhq/caseflow/pkg/steps/datacheck"
	"github.com/caseflowhq/caseflow/pkg/steps/delay"
	"github.com/caseflowhq/caseflow/pkg/steps/docgen"
	"github.com/caseflowhq/caseflow/pkg/steps/notify"
	"github.com/caseflowhq/caseflow/pkg/steps/taskassign"
)

func registerNativeHandlers(reg *registry.Registry, logger *slog.Logger) {
	evaluator := expression.NewEvaluator()
	sender := notify.NewLogSender(logger)

	reg.RegisterHandler(notify.NewEmailFactory(sender))
	reg.RegisterHandler(notify.NewSMSFactory(sender))
	reg.RegisterHandler(notify.NewSlackFactory(sender))
	reg.RegisterHandler(approval.NewFactory())
	reg.RegisterHandler(branch.NewFactory(evaluator))
	reg.RegisterHandler(apicall.NewFactory())
	reg.RegisterHandler(delay.NewFactory())
	reg.RegisterHandler(datacheck.NewFactory())
	reg.RegisterHandler(taskassign.NewFactory(taskassign.NewLogAssigner(logger)))
	reg.RegisterHandler(docgen.NewFactory(docgen.NewLogRenderer(logger)))

	// Unknown step types fall through to the pass-through custom handler.
	reg.RegisterFallback(custom.NewFactory(nil))
}

// NewRegistry creates a registry with every native step handler registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeHandlers(reg, logger)

	return reg
}
