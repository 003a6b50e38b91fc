// internal/browser/options.go
package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xkilldash9x/rebootctl/api/schemas"
	"github.com/xkilldash9x/rebootctl/internal/config"
)

// Options is the slice of configuration a driver needs.
type Options struct {
	Browser  config.BrowserConfig
	Timeouts config.TimeoutConfig
	Flow     schemas.Flow
}

// OptionsFromConfig extracts driver options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Browser:  cfg.Browser,
		Timeouts: cfg.Timeouts,
		Flow:     cfg.Flow,
	}
}

// CSSForID turns an element id into an attribute selector, which unlike
// "#id" tolerates ids that are not valid CSS identifiers.
func CSSForID(id string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `[id="` + r.Replace(id) + `"]`
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// elementLookupJS returns a JS expression evaluating to the first element
// matched by sel, or null.
func elementLookupJS(sel schemas.Selector) string {
	switch sel.By {
	case schemas.SelectorByXPath:
		return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", jsString(sel.Value))
	case schemas.SelectorByID:
		return fmt.Sprintf("document.getElementById(%s)", jsString(sel.Value))
	default:
		return fmt.Sprintf("document.querySelector(%s)", jsString(sel.Value))
	}
}

// VisibilityScript returns a JS expression that is true when sel matches an
// element that takes up space in the layout.
func VisibilityScript(sel schemas.Selector) string {
	return fmt.Sprintf(`(() => {
	try {
		const el = %s;
		if (!el) { return false; }
		const style = window.getComputedStyle(el);
		if (style.visibility === "hidden" || style.display === "none") { return false; }
		return !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	} catch (e) { return false; }
})()`, elementLookupJS(sel))
}

// ReachabilityScript returns a JS promise resolving to false when url cannot
// be fetched from the page within timeoutMs.
func ReachabilityScript(url string, timeoutMs int64) string {
	return fmt.Sprintf(`(async () => {
	const ctrl = new AbortController();
	const timer = setTimeout(() => ctrl.abort(), %d);
	try {
		await fetch(%s, {cache: "no-store", mode: "no-cors", signal: ctrl.signal});
		return true;
	} catch (e) {
		return false;
	} finally {
		clearTimeout(timer);
	}
})()`, timeoutMs, jsString(url))
}
