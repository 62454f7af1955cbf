package simple

import (
	"github.com/project-flogo/core/support/log"
	"github.com/project-flogo/petriflow/model"
)

var logger = log.ChildLogger(log.RootLogger(), "petriflow-model")

const (
	ModelName = "petriflow-simple"
)

func init() {
	model.RegisterDefault(New())
}

func New() *model.NetModel {
	m := model.New(ModelName)
	m.RegisterDefaultTaskBehavior(model.TypeAtomic, &TaskBehavior{})
	m.RegisterTaskBehavior(model.TypeMultiInstance, &MultiInstanceTaskBehavior{})

	return m
}
