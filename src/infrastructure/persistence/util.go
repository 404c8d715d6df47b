package persistence

import (
	"context"
	"strconv"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain/repository"
)

func fetchPage(
	db config.DbIface,
	page *repository.Page,
	items interface{},
	selects, from, orderBy string,
	queryArgs ...interface{},
) error {
	if err := sqlscan.Get(
		context.Background(), db, &page.Total,
		`SELECT count(*) FROM `+from,
		queryArgs...,
	); err != nil {
		return err
	}

	return sqlscan.Select(
		context.Background(), db, items,
		`SELECT `+selects+
			` FROM `+from+
			` ORDER BY `+orderBy+
			` OFFSET :`+strconv.Itoa(len(queryArgs)+1)+` ROWS`+
			` FETCH NEXT :`+strconv.Itoa(len(queryArgs)+2)+` ROWS ONLY`,
		append(queryArgs, page.Offset, page.Limit)...,
	)
}
