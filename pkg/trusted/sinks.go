package trusted

import "strings"

// SinkFor reports whether setting attribute attr on an element with the
// given tag is an injection sink, and which trusted type it requires.
func SinkFor(tag, attr string) (Kind, bool) {
	tag = strings.ToLower(tag)
	attr = strings.ToLower(attr)

	if len(attr) > 2 && strings.HasPrefix(attr, "on") {
		return KindScript, true
	}
	switch {
	case tag == "iframe" && attr == "srcdoc":
		return KindHTML, true
	case tag == "script" && attr == "src":
		return KindScriptURL, true
	}
	return 0, false
}

// PropertySinkFor reports whether assigning property prop on an element
// with the given tag is an injection sink. Property names are case
// sensitive, as in the DOM.
func PropertySinkFor(tag, prop string) (Kind, bool) {
	tag = strings.ToLower(tag)

	switch prop {
	case "innerHTML", "outerHTML":
		return KindHTML, true
	case "srcdoc":
		if tag == "iframe" {
			return KindHTML, true
		}
	case "text", "textContent", "innerText":
		if tag == "script" {
			return KindScript, true
		}
	case "src":
		if tag == "script" {
			return KindScriptURL, true
		}
	}
	return 0, false
}

// SinkName formats a sink the way browsers report it, e.g. "Element innerHTML".
func SinkName(tag, name string) string {
	return strings.ToLower(tag) + " " + name
}
