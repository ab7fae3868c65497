package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
)

func queryValue(r *http.Request, key string) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	return raw, raw != ""
}

func badQuery(key, msg string, extra ...any) error {
	details := map[string]any{"field": key}
	for i := 0; i+1 < len(extra); i += 2 {
		details[extra[i].(string)] = extra[i+1]
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt reads key as an int in [lo, hi], falling back to def when
// the parameter is absent.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, badQuery(key, key+" must be numeric")
	case n < lo || n > hi:
		return 0, badQuery(key, key+" out of range", "min", lo, "max", hi)
	}
	return n, nil
}

// ParseOptionalQueryInt64 reads a positive identifier. Absent keys give nil.
func ParseOptionalQueryInt64(r *http.Request, key string) (*int64, error) {
	raw, ok := queryValue(r, key)
	if !ok {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, badQuery(key, key+" must be a positive integer")
	}
	return &id, nil
}
