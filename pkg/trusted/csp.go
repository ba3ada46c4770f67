package trusted

import (
	"fmt"
	"strings"
)

// FromCSP builds a factory from a Content-Security-Policy header value.
// Only the require-trusted-types-for and trusted-types directives are read;
// everything else in the header is ignored.
//
//	require-trusted-types-for 'script'; trusted-types app-policy default
func FromCSP(header string) (*Factory, error) {
	var opts []Option

	for _, directive := range strings.Split(header, ";") {
		fields := strings.Fields(strings.TrimSpace(directive))
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "require-trusted-types-for":
			if len(fields) != 2 || fields[1] != "'script'" {
				return nil, fmt.Errorf("csp: require-trusted-types-for expects 'script', got %q", strings.Join(fields[1:], " "))
			}
			opts = append(opts, Enforce())

		case "trusted-types":
			names, dup, err := parseTrustedTypes(fields[1:])
			if err != nil {
				return nil, err
			}
			if names != nil {
				opts = append(opts, AllowPolicies(names...))
			}
			if dup {
				opts = append(opts, AllowDuplicates())
			}
		}
	}

	return NewFactory(opts...), nil
}

// parseTrustedTypes returns nil names when any policy name is allowed.
func parseTrustedTypes(values []string) (names []string, allowDuplicates bool, err error) {
	names = []string{}
	none := false
	for _, v := range values {
		switch v {
		case "'none'":
			none = true
		case "'allow-duplicates'":
			allowDuplicates = true
		case "*":
			return nil, allowDuplicates || contains(values, "'allow-duplicates'"), nil
		default:
			if strings.HasPrefix(v, "'") {
				return nil, false, fmt.Errorf("csp: unknown trusted-types keyword %s", v)
			}
			names = append(names, v)
		}
	}
	if none && len(names) > 0 {
		return nil, false, fmt.Errorf("csp: trusted-types 'none' cannot be combined with policy names")
	}
	return names, allowDuplicates, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
