package params

import (
	"classroom-api/core/constants"
	"strconv"

	"github.com/labstack/echo/v4"
)

type QueryParams struct {
	PageNumber int
	PageSize   int
	Search     string
}

func NewQueryParams(c echo.Context) QueryParams {
	pageNumber, err := strconv.Atoi(c.QueryParam("page_number"))
	if err != nil || pageNumber < 1 {
		pageNumber = 1
	}
	pageSize, err := strconv.Atoi(c.QueryParam("page_size"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = constants.DefaultPageSize
	}
	return QueryParams{
		PageNumber: pageNumber,
		PageSize:   pageSize,
		Search:     c.QueryParam("search"),
	}
}

func (p QueryParams) Offset() int {
	return (p.PageNumber - 1) * p.PageSize
}
