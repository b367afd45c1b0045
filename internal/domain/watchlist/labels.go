package watchlist

import (
	"fmt"
	"html"
)

// Action labels shown next to a plugin. Watch is the call to action, so it
// is highlighted.
const (
	LabelWatch   = `<span style="color:green">Watch</span>`
	LabelUnwatch = "Unwatch"
)

// Label returns the action offered for a plugin in the given state.
func Label(watching bool) string {
	if watching {
		return LabelUnwatch
	}
	return LabelWatch
}

// ActionLink renders the row action anchor used by the admin page.
func ActionLink(pluginFile string, watching bool) string {
	return fmt.Sprintf(`<a data-plugin-file="%s" href="#">%s</a>`, html.EscapeString(pluginFile), Label(watching))
}
