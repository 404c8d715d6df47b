package service

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
	"github.com/operify/opsgate/src/infrastructure/persistence"
)

// ErrUnknownTable is returned when a requested table is not found
// in the schema's data dictionary.
var ErrUnknownTable = errors.New("Table does not exist or has no columns")

type CatalogService interface {
	WithQuerier(config.DbIface) CatalogService

	GetTables() ([]string, error)
	GetTableData(table string, page *repository.Page) ([]domain.TableRow, error)
}

type catalogService struct {
	logger            zerolog.Logger
	catalogRepository repository.CatalogRepository
}

func NewCatalogService(db config.DbIface, logger *zerolog.Logger) CatalogService {
	return &catalogService{
		logger:            logger.With().Str("component", "CatalogService").Logger(),
		catalogRepository: persistence.NewCatalogRepository(db),
	}
}

func (self *catalogService) WithQuerier(querier config.DbIface) CatalogService {
	return &catalogService{
		self.logger,
		self.catalogRepository.WithQuerier(querier),
	}
}

func (self catalogService) GetTables() (tables []string, err error) {
	self.logger.Trace().Msg("Getting tables")
	tables, err = self.catalogRepository.GetTables()
	if err != nil {
		err = errors.WithMessage(err, "While getting tables")
		return
	}
	self.logger.Trace().Int("count", len(tables)).Msg("Got tables")
	return
}

// GetTableData verifies the table against the data dictionary before
// the repository interpolates the name into a query.
func (self catalogService) GetTableData(table string, page *repository.Page) (rows []domain.TableRow, err error) {
	logger := self.logger.With().Str("table", table).Logger()
	logger.Trace().Msg("Getting table data")

	columns, err := self.catalogRepository.GetColumns(table)
	if err != nil {
		err = errors.WithMessagef(err, "While getting columns of table %q", table)
		return
	}
	if len(columns) == 0 {
		err = errors.WithMessagef(ErrUnknownTable, "%q", table)
		return
	}

	rows, err = self.catalogRepository.GetRows(strings.ToUpper(table), page)
	if err != nil {
		err = errors.WithMessagef(err, "While getting rows of table %q", table)
		return
	}
	logger.Trace().Int("count", len(rows)).Msg("Got table data")
	return
}
