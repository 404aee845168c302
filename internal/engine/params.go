package engine

import (
	"net/url"
	"strconv"

	"github.com/FairForge/metaapi/internal/node"
	"github.com/FairForge/metaapi/internal/query"
)

// Params are the common request options of object reads.
type Params struct {
	Fields    []string
	Filters   []string
	Orders    []string
	Junction  query.Junction
	Page      int
	PageSize  int
	Paging    bool
	Defaults  query.Defaults
	Inclusion node.Inclusion
	// Query is a free text match over identifier, code and name.
	Query      string
	UseWrapper bool

	// Values keeps the raw parameters for pager links.
	Values url.Values
}

// DefaultParams are used when a request carries no options.
func DefaultParams() Params {
	return Params{
		Junction:  query.And,
		Page:      1,
		PageSize:  query.DefaultPageSize,
		Paging:    true,
		Defaults:  query.IncludeDefaults,
		Inclusion: node.NonNull,
		Values:    url.Values{},
	}
}

// ParseParams reads options from URL query values.
func ParseParams(values url.Values) (Params, error) {
	p := DefaultParams()
	p.Values = values
	p.Fields = values["fields"]
	p.Filters = values["filter"]
	p.Orders = values["order"]
	p.Junction = query.ParseJunction(values.Get("rootJunction"))
	p.Defaults = query.ParseDefaults(values.Get("defaults"))
	p.Inclusion = node.ParseInclusion(values.Get("inclusionStrategy"))
	p.Query = values.Get("query")

	var err error
	if p.Paging, err = boolParam(values, "paging", true); err != nil {
		return p, err
	}
	if p.UseWrapper, err = boolParam(values, "useWrapper", false); err != nil {
		return p, err
	}
	if p.Page, err = positiveParam(values, "page", 1); err != nil {
		return p, err
	}
	if p.PageSize, err = positiveParam(values, "pageSize", query.DefaultPageSize); err != nil {
		return p, err
	}
	return p, nil
}

// Pagination converts the paging options.
func (p Params) Pagination() query.Pagination {
	return query.Pagination{Page: p.Page, PageSize: p.PageSize, Enabled: p.Paging}
}

func boolParam(values url.Values, name string, def bool) (bool, error) {
	v := values.Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, ErrBadRequest(err, "Invalid value for %s: %s", name, v)
	}
	return b, nil
}

func positiveParam(values url.Values, name string, def int) (int, error) {
	v := values.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def, ErrBadRequest(err, "%s must be a positive integer, got %s", name, v)
	}
	return n, nil
}
