package access

import (
	"encoding/json"
	"fmt"
)

// Decode parses a stored permission document without ever widening access.
// Any datum of the wrong type resolves to its denying zero value: non-boolean
// flags become false, a non-array modules or features field becomes empty and
// entries without a string name or key are dropped. The returned set is always
// safe to evaluate; a non-nil error is a *MalformedError describing what was
// degraded.
func Decode(raw []byte) (PermissionSet, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return PermissionSet{}, &MalformedError{Issues: []string{"document: " + err.Error()}}
	}
	d := &decoder{}
	set := d.permissionSet(doc)
	if len(d.issues) > 0 {
		return set, &MalformedError{Issues: d.issues}
	}
	return set, nil
}

type decoder struct {
	issues []string
}

func (d *decoder) issue(format string, args ...any) {
	d.issues = append(d.issues, fmt.Sprintf(format, args...))
}

func (d *decoder) permissionSet(v any) PermissionSet {
	obj, ok := v.(map[string]any)
	if !ok {
		d.issue("document: expected object")
		return PermissionSet{}
	}
	var set PermissionSet
	set.Role = d.str(obj, "role", "role")
	set.Unit = d.str(obj, "unit", "unit")
	set.CanAccessAllUnits = d.flag(obj, "canAccessAllUnits", "canAccessAllUnits")

	rawModules, present := obj["modules"]
	if !present {
		d.issue("modules: missing")
		return set
	}
	list, ok := rawModules.([]any)
	if !ok {
		if rawModules != nil {
			d.issue("modules: expected array")
		} else {
			d.issue("modules: null")
		}
		return set
	}
	set.Modules = make([]ModuleGrant, 0, len(list))
	for i, item := range list {
		if m, ok := d.module(i, item); ok {
			set.Modules = append(set.Modules, m)
		}
	}
	return set
}

func (d *decoder) module(i int, v any) (ModuleGrant, bool) {
	path := fmt.Sprintf("modules[%d]", i)
	obj, ok := v.(map[string]any)
	if !ok {
		d.issue("%s: expected object", path)
		return ModuleGrant{}, false
	}
	name, ok := obj["name"].(string)
	if !ok || name == "" {
		d.issue("%s.name: expected non-empty string", path)
		return ModuleGrant{}, false
	}
	m := ModuleGrant{Name: name, Dashboard: d.flag(obj, "dashboard", path+".dashboard")}
	rawFeatures, present := obj["features"]
	if !present || rawFeatures == nil {
		return m, true
	}
	list, ok := rawFeatures.([]any)
	if !ok {
		d.issue("%s.features: expected array", path)
		return m, true
	}
	m.Features = make([]FeatureGrant, 0, len(list))
	for j, item := range list {
		if f, ok := d.feature(fmt.Sprintf("%s.features[%d]", path, j), item); ok {
			m.Features = append(m.Features, f)
		}
	}
	return m, true
}

func (d *decoder) feature(path string, v any) (FeatureGrant, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		d.issue("%s: expected object", path)
		return FeatureGrant{}, false
	}
	key, ok := obj["key"].(string)
	if !ok || key == "" {
		d.issue("%s.key: expected non-empty string", path)
		return FeatureGrant{}, false
	}
	f := FeatureGrant{Key: key}
	for _, a := range actions {
		f = f.With(a, d.flag(obj, string(a), path+"."+string(a)))
	}
	return f, true
}

// flag reads a boolean field. Absent fields are simply false; present
// non-boolean values are false and reported.
func (d *decoder) flag(obj map[string]any, field, path string) bool {
	v, present := obj[field]
	if !present || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.issue("%s: expected boolean, got %T", path, v)
		return false
	}
	return b
}

func (d *decoder) str(obj map[string]any, field, path string) string {
	v, present := obj[field]
	if !present || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.issue("%s: expected string, got %T", path, v)
		return ""
	}
	return s
}
