// Package migrate upgrades stored rule descriptions to the current format.
//
// Descriptions are handled as decoded JSON (map[string]any) so that shapes
// the current models no longer describe can still be read. Anything that
// does not match a known legacy shape is left as it is.
package migrate

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Migrator rewrites legacy descriptions. Loc is the hub's local time zone
// and Now supplies the date used to convert times of day.
type Migrator struct {
	Loc *time.Location
	Now func() time.Time
}

// Migrate upgrades a rule with the process's local time zone
func Migrate(old map[string]any) map[string]any {
	return (&Migrator{Loc: time.Local}).Migrate(old)
}

// Migrate returns the upgraded rule, or nil when old is already current.
// old is never modified.
func (m *Migrator) Migrate(old map[string]any) map[string]any {
	rule, _ := deepCopy(old).(map[string]any)
	changed := false
	for _, key := range []string{"trigger", "effect"} {
		if node, ok := rule[key].(map[string]any); ok && m.migrateNode(node) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return rule
}

func (m *Migrator) migrateNode(node map[string]any) bool {
	changed := false
	for _, key := range []string{"triggers", "effects"} {
		children, ok := node[key].([]any)
		if !ok {
			continue
		}
		for _, c := range children {
			if child, ok := c.(map[string]any); ok && m.migrateNode(child) {
				changed = true
			}
		}
	}

	if node["type"] == "TimeTrigger" && m.localizeTime(node) {
		changed = true
	}
	if prop, ok := node["property"].(map[string]any); ok && migrateProperty(prop) {
		changed = true
	}
	if thing, ok := node["thing"].(map[string]any); ok {
		if href, ok := thing["href"].(string); ok {
			if thingID, _, ok := parseHref(href); ok {
				node["thing"] = thingID
				changed = true
			}
		}
	}
	return changed
}

// localizeTime converts a UTC time of day to local time. Only triggers
// written before times were localized lack the flag.
func (m *Migrator) localizeTime(node map[string]any) bool {
	if _, ok := node["localized"]; ok {
		return false
	}
	value, ok := node["time"].(string)
	if !ok {
		return false
	}
	var hour, minute int
	if _, err := fmt.Sscanf(value, "%d:%d", &hour, &minute); err != nil {
		return false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return false
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	loc := m.Loc
	if loc == nil {
		loc = time.Local
	}
	y, mo, d := now().UTC().Date()
	local := time.Date(y, mo, d, hour, minute, 0, 0, time.UTC).In(loc)

	node["time"] = local.Format("15:04")
	node["localized"] = true
	return true
}

func migrateProperty(prop map[string]any) bool {
	href, ok := prop["href"].(string)
	if !ok {
		return false
	}
	thingID, propertyID, ok := parseHref(href)
	if !ok || propertyID == "" {
		return false
	}
	prop["thing"] = thingID
	prop["id"] = propertyID
	delete(prop, "href")
	delete(prop, "name")
	return true
}

// parseHref extracts ids from /things/<thing>[/properties/<property>],
// optionally prefixed by a scheme and host.
func parseHref(href string) (thingID, propertyID string, ok bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] != "things" || parts[i+1] == "" {
			continue
		}
		thingID = parts[i+1]
		rest := parts[i+2:]
		switch {
		case len(rest) == 0:
			return thingID, "", true
		case len(rest) == 2 && rest[0] == "properties" && rest[1] != "":
			return thingID, rest[1], true
		}
		return "", "", false
	}
	return "", "", false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	}
	return v
}
