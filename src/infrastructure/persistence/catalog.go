package persistence

import (
	"context"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/pkg/errors"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type catalogRepository struct {
	DB config.DbIface
}

func NewCatalogRepository(db config.DbIface) repository.CatalogRepository {
	return &catalogRepository{db}
}

func (a catalogRepository) WithQuerier(querier config.DbIface) repository.CatalogRepository {
	return &catalogRepository{querier}
}

func (a catalogRepository) GetTables() (tables []string, err error) {
	return tables, sqlscan.Select(
		context.Background(), a.DB, &tables,
		`SELECT table_name FROM user_tables ORDER BY table_name`,
	)
}

func (a catalogRepository) GetColumns(table string) (columns []string, err error) {
	return columns, sqlscan.Select(
		context.Background(), a.DB, &columns,
		`SELECT column_name FROM user_tab_columns WHERE table_name = :1 ORDER BY column_id`,
		strings.ToUpper(table),
	)
}

// GetRows pages through a table using the ROWNUM window trick so it
// also works on Oracle versions without OFFSET … FETCH support.
// The table name must have been validated against the data dictionary
// before it is interpolated here.
func (a catalogRepository) GetRows(table string, page *repository.Page) ([]domain.TableRow, error) {
	if err := sqlscan.Get(
		context.Background(), a.DB, &page.Total,
		`SELECT count(*) FROM `+table,
	); err != nil {
		return nil, err
	}

	rows, err := a.DB.QueryContext(
		context.Background(),
		`SELECT * FROM (
			SELECT a.*, ROWNUM rnum FROM (
				SELECT * FROM `+table+`
			) a WHERE ROWNUM <= :1
		) WHERE rnum > :2`,
		page.Offset+page.Limit, page.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []domain.TableRow{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, errors.WithMessagef(err, "While scanning a row of table %q", table)
		}

		row := domain.TableRow{Data: map[string]any{}}
		for i, column := range columns {
			if column == "RNUM" {
				continue
			}
			if v, ok := values[i].([]byte); ok {
				row.Data[column] = string(v)
			} else {
				row.Data[column] = values[i]
			}
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
