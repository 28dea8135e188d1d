package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultPageSize applies when the client omits page_size.
	DefaultPageSize = 50
	// MaxPageSize caps page_size to keep queries bounded.
	MaxPageSize = 200
)

// Params bundles the pagination values extracted from a request.
type Params struct {
	PageSize  int
	PageToken string
}

// FromQuery parses page_size and page_token from the query string. The token
// is carried through opaque; DecodeToken validates it at the storage layer.
func FromQuery(query url.Values) (Params, error) {
	params := Params{PageToken: query.Get("page_token")}
	if raw := query.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Params{}, fmt.Errorf("pagination: page_size must be a positive integer")
		}
		params.PageSize = size
	}
	return params, nil
}

// Clamp normalises the page size into the supported range.
func (p Params) Clamp() Params {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}
