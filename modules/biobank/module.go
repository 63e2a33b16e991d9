package biobank

import (
	"context"
	"embed"

	"github.com/arcadia-bio/biocore/internal/blob"
	"github.com/arcadia-bio/biocore/modules/biobank/infrastructure/persistence"
	"github.com/arcadia-bio/biocore/modules/biobank/presentation/controllers"
	"github.com/arcadia-bio/biocore/modules/biobank/services"
	"github.com/arcadia-bio/biocore/pkg/application"
	"github.com/arcadia-bio/biocore/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	app.RegisterSchema(&migrationFiles)

	store, err := blob.Open(context.Background(), conf.Blob)
	if err != nil {
		return err
	}

	orders := persistence.NewOrderRepository()
	ledgerRepo := persistence.NewLedgerRepository()
	participants := persistence.NewParticipantRepository()
	sites := persistence.NewSiteRepository()
	categories := persistence.NewCategoryRepository()

	validator := services.NewReferenceValidator(participants, sites, categories)
	summaries := services.NewSummaryUpdater(participants, conf.Biobank.DistinctVisitMinGap)

	app.RegisterServices(
		services.NewOrderService(
			orders, ledgerRepo, categories, validator, summaries,
			app.EventPublisher(), app.Logger(), conf.Biobank.KitSpecimenPrefix,
		),
		services.NewExportService(
			ledgerRepo, orders, categories, store,
			app.Logger(), conf.Biobank.ExportDestination,
		),
	)

	app.RegisterControllers(
		controllers.NewOrdersAPIController(app),
		controllers.NewExportsAPIController(app),
	)

	return nil
}

func (m *Module) Name() string {
	return "biobank"
}
