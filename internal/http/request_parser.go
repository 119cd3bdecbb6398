// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data:
// the date-range and type selectors shared by every read endpoint, and
// JSON request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"motolucro/internal/aggregate"
)

const maxBodyBytes = 64 << 10

// errMalformed marks request errors that map to 400.
var errMalformed = errors.New("malformed request")

// ParseDate reads a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp.
// Calendar dates are placed at midnight in loc. Empty input yields the
// zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, _, err := parseDate(s, loc)
	return t, err
}

// ParseBookingDate is ParseDate for new transactions: a bare calendar date
// is booked at midday so it stays on its day in every view.
func ParseBookingDate(s string, loc *time.Location) (time.Time, error) {
	t, dateOnly, err := parseDate(s, loc)
	if err != nil || !dateOnly {
		return t, err
	}
	return t.Add(12 * time.Hour), nil
}

func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", errMalformed, s)
	}
	return t.In(loc), false, nil
}

// ParseRange extracts the date-range selector from ?filter=&start=&end=.
// A custom range with a missing bound is returned as-is; it resolves to the
// unfiltered interval.
func ParseRange(query url.Values, loc *time.Location) (aggregate.Range, error) {
	sel, err := aggregate.ParseSelector(query.Get("filter"))
	if err != nil {
		return aggregate.Range{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	r := aggregate.Range{Selector: sel}
	if sel != aggregate.Custom {
		return r, nil
	}
	if r.Start, err = ParseDate(query.Get("start"), loc); err != nil {
		return aggregate.Range{}, err
	}
	if r.End, err = ParseDate(query.Get("end"), loc); err != nil {
		return aggregate.Range{}, err
	}
	return r, nil
}

// ParseSeriesRange is ParseRange for the chart, which also refuses custom
// ranges longer than aggregate.MaxSeriesDays.
func ParseSeriesRange(query url.Values, loc *time.Location) (aggregate.Range, error) {
	r, err := ParseRange(query, loc)
	if err != nil {
		return r, err
	}
	if r.Active() && r.Selector == aggregate.Custom && aggregate.DaysBetween(r.Start, r.End)+1 > aggregate.MaxSeriesDays {
		return aggregate.Range{}, fmt.Errorf("%w: chart range longer than %d days", errMalformed, aggregate.MaxSeriesDays)
	}
	return r, nil
}

// ParseFilterState builds the history filter from the query string. The
// type is applied before the subtype, so a subtype only survives when it
// was sent together with its type.
func ParseFilterState(query url.Values, loc *time.Location) (aggregate.FilterState, error) {
	st := aggregate.NewFilterState()
	r, err := ParseRange(query, loc)
	if err != nil {
		return st, err
	}
	st.SetRange(r)

	tf, err := aggregate.ParseTypeFilter(query.Get("type"))
	if err != nil {
		return st, fmt.Errorf("%w: %v", errMalformed, err)
	}
	st.SetType(tf)
	st.SetSubtype(sanitizeInput(query.Get("subtype")))
	return st, nil
}

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errMalformed)
		case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.As(err, &maxErr),
			errors.Is(err, io.ErrUnexpectedEOF), strings.HasPrefix(err.Error(), "json: unknown field"):
			return fmt.Errorf("%w: %v", errMalformed, err)
		default:
			// errors returned by field unmarshalers, e.g. core.ErrInvalidAmount
			return err
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errMalformed)
	}
	return nil
}

// rangeLabel describes the interval on statement headers.
func rangeLabel(iv aggregate.Interval) string {
	if !iv.Bounded {
		return "todo o período"
	}
	return iv.Start.Format("02/01/2006") + " a " + iv.End.Format("02/01/2006")
}
