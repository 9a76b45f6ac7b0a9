// Package dsn parses and validates MySQL-flavored connection descriptors of
// the form mysql://[user[:password]@]host:port[/database][?key=value&...].
//
// Parsing and validation are two separate steps: Parse extracts a raw
// parameter map from the descriptor, Validate type-checks and normalizes it.
// Parameters travel as map[string]any so that "omitted" stays distinct from
// "present but empty" - a key simply isn't there when the descriptor didn't
// supply it.
package dsn

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/revtrail/revtrail/internal/migration"
)

// Scheme is the required descriptor prefix.
const Scheme = "mysql://"

// BoolParams is the fixed set of parameters coerced to booleans by Validate.
var BoolParams = []string{"autocommit", "ssl_disabled", "use_pure"}

// truthy holds the strings that coerce to true; every other string coerces to
// false. Matching is case-insensitive.
var truthy = map[string]bool{"true": true, "1": true, "yes": true, "on": true}

// recognized query keys; the rest of the query string is ignored.
var queryKeys = map[string]bool{
	"user":         true,
	"password":     true,
	"database":     true,
	"autocommit":   true,
	"ssl_disabled": true,
	"use_pure":     true,
}

// Parse extracts connection parameters from a descriptor string.
//
// host and port are mandatory and their absence are two distinct failures.
// user, password, and database are only present in the result when the
// descriptor actually carries them. Recognized query keys override values
// derived from the authority/path; a query parameter with an empty value is a
// hard failure; only the first value of a repeated key is kept.
func Parse(raw string) (map[string]any, error) {
	if !strings.HasPrefix(raw, Scheme) {
		return nil, migration.FormatErrorf("dsn must start with %s", Scheme)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, migration.FormatErrorf("malformed dsn: %v", err)
	}

	if u.Hostname() == "" {
		return nil, &migration.FormatError{Reason: "host is required in dsn"}
	}
	if u.Port() == "" {
		return nil, &migration.FormatError{Reason: "port is required in dsn"}
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil, migration.FormatErrorf("invalid port value: %s", u.Port())
	}

	params := map[string]any{
		"host": u.Hostname(),
		"port": port,
	}

	if u.User != nil {
		if user := u.User.Username(); user != "" {
			params["user"] = user
		}
		if pass, ok := u.User.Password(); ok && pass != "" {
			params["password"] = pass
		}
	}

	// A path of "/" or "" means no database, not a database named "".
	if db := strings.TrimLeft(u.Path, "/"); db != "" {
		params["database"] = db
	}

	if u.RawQuery != "" {
		values, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return nil, migration.FormatErrorf("malformed query string: %v", err)
		}
		for _, name := range sortedKeys(values) {
			// first value wins when a key repeats
			v := values[name][0]
			if v == "" {
				return nil, migration.FormatErrorf("empty value for query parameter: %s", name)
			}
			if queryKeys[name] {
				params[name] = v
			}
		}
	}

	return params, nil
}

// Validate type-checks and normalizes a parameter map produced by Parse. It
// never mutates its input; the returned map is a fresh copy.
//
// port is coerced to an integer and range-checked against [1, 65535]. Each
// parameter in BoolParams, when present as a string, is coerced
// case-insensitively ("true"/"1"/"yes"/"on" mean true, anything else false);
// a non-string non-bool value is rejected. All other entries pass through.
func Validate(params map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(params))
	for k, v := range params {
		validated[k] = v
	}

	port, err := coercePort(validated["port"])
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, migration.FormatErrorf("port must be between 1 and 65535, got %v", params["port"])
	}
	validated["port"] = port

	for _, name := range BoolParams {
		v, ok := validated[name]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			// already normalized
		case string:
			validated[name] = truthy[strings.ToLower(t)]
		default:
			return nil, migration.FormatErrorf("invalid value for boolean parameter %s: %v", name, v)
		}
	}

	return validated, nil
}

func coercePort(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case string:
		port, err := strconv.Atoi(t)
		if err != nil {
			return 0, migration.FormatErrorf("invalid port value: %v", t)
		}
		return port, nil
	default:
		return 0, migration.FormatErrorf("invalid port value: %v", v)
	}
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	// stable iteration keeps the "empty value" error deterministic when a
	// descriptor carries several offending parameters
	sort.Strings(keys)
	return keys
}
