package modules

import (
	"github.com/arcadia-bio/biocore/modules/biobank"
	"github.com/arcadia-bio/biocore/pkg/application"
)

var BuiltInModules = []application.Module{
	biobank.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	return application.Load(app, externalModules...)
}
