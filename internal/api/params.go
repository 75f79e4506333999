// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/civil"
	"github.com/seedlab/seedlab/internal/lims"
	"github.com/seedlab/seedlab/internal/page"
)

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid %s %q", name, raw).WithField(name, "must be a positive integer")
	}
	return id, nil
}

// query collects the first parse error so handlers check once.
type query struct {
	v   url.Values
	err error
}

func newQuery(r *http.Request) *query { return &query{v: r.URL.Query()} }

func (q *query) fail(name, msg string) {
	if q.err == nil {
		q.err = apperr.Invalid("invalid query parameter %q", name).WithField(name, msg)
	}
}

func (q *query) str(name string) string { return strings.TrimSpace(q.v.Get(name)) }

func (q *query) int(name string) int {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		q.fail(name, "must be a non-negative integer")
		return 0
	}
	return n
}

func (q *query) id(name string) int64 {
	raw := q.str(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		q.fail(name, "must be a positive integer")
		return 0
	}
	return n
}

func (q *query) bool(name string) *bool {
	raw := q.str(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "must be true or false")
		return nil
	}
	return &b
}

func (q *query) date(name string) civil.Date {
	raw := q.str(name)
	if raw == "" {
		return civil.Date{}
	}
	d, err := civil.Parse(raw)
	if err != nil {
		q.fail(name, "must be a YYYY-MM-DD date")
	}
	return d
}

func (q *query) kind(name string) lims.Kind {
	raw := q.str(name)
	if raw == "" {
		return ""
	}
	k, err := lims.ParseKind(raw)
	if err != nil {
		q.fail(name, "must be one of "+strings.Join(lims.KindStrings(), ", "))
	}
	return k
}

func (q *query) estado(name string) lims.Estado {
	raw := q.str(name)
	if raw == "" {
		return ""
	}
	e, err := lims.ParseEstado(raw)
	if err != nil {
		q.fail(name, "unknown estado")
	}
	return e
}

// page reads the zero-based page and size parameters.
func (q *query) page() page.Request {
	p := page.Request{Page: q.int("page"), Size: q.int("size")}
	if p.Size > page.MaxSize {
		q.fail("size", "must be at most "+strconv.Itoa(page.MaxSize))
	}
	return p.Normalize()
}
