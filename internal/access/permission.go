package access

import (
	"errors"
	"fmt"
	"strings"
)

// FeatureGrant carries the five action flags for one feature of a module.
// A grant with every flag false still marks the feature as known.
type FeatureGrant struct {
	Key    string `json:"key"`
	View   bool   `json:"view"`
	Add    bool   `json:"add"`
	Edit   bool   `json:"edit"`
	Delete bool   `json:"delete"`
	Alter  bool   `json:"alter"`
}

// Allows reports the stored flag for a. Unrecognised actions are denied.
func (f FeatureGrant) Allows(a Action) bool {
	return f.mask()&a.bit() != 0
}

// With returns a copy of f with the flag for a set to v.
func (f FeatureGrant) With(a Action, v bool) FeatureGrant {
	switch a {
	case ActionView:
		f.View = v
	case ActionAdd:
		f.Add = v
	case ActionEdit:
		f.Edit = v
	case ActionDelete:
		f.Delete = v
	case ActionAlter:
		f.Alter = v
	}
	return f
}

func (f FeatureGrant) mask() actionMask {
	var m actionMask
	if f.View {
		m |= maskView
	}
	if f.Add {
		m |= maskAdd
	}
	if f.Edit {
		m |= maskEdit
	}
	if f.Delete {
		m |= maskDelete
	}
	if f.Alter {
		m |= maskAlter
	}
	return m
}

func grantFromMask(key string, m actionMask) FeatureGrant {
	return FeatureGrant{
		Key:    key,
		View:   m&maskView != 0,
		Add:    m&maskAdd != 0,
		Edit:   m&maskEdit != 0,
		Delete: m&maskDelete != 0,
		Alter:  m&maskAlter != 0,
	}
}

// ModuleGrant is the stored grant for one catalog module. Dashboard controls
// navigation visibility.
type ModuleGrant struct {
	Name      string         `json:"name"`
	Dashboard bool           `json:"dashboard"`
	Features  []FeatureGrant `json:"features"`
}

// Feature returns the grant stored for key.
func (m ModuleGrant) Feature(key string) (FeatureGrant, bool) {
	for _, f := range m.Features {
		if f.Key == key {
			return f, true
		}
	}
	return FeatureGrant{}, false
}

// PermissionSet is the whole permission document attached to a principal.
type PermissionSet struct {
	Role              string        `json:"role"`
	Unit              string        `json:"unit,omitempty"`
	CanAccessAllUnits bool          `json:"canAccessAllUnits"`
	Modules           []ModuleGrant `json:"modules"`
}

// Module returns the stored grant for name, compared case-insensitively.
func (p PermissionSet) Module(name string) (ModuleGrant, bool) {
	want, ok := ParseModule(name)
	if !ok {
		return ModuleGrant{}, false
	}
	for _, m := range p.Modules {
		if got, ok := ParseModule(m.Name); ok && got == want {
			return m, true
		}
	}
	return ModuleGrant{}, false
}

// Clone returns a deep copy of p.
func (p PermissionSet) Clone() PermissionSet {
	out := p
	if p.Modules == nil {
		return out
	}
	out.Modules = make([]ModuleGrant, len(p.Modules))
	for i, m := range p.Modules {
		m.Features = append([]FeatureGrant(nil), m.Features...)
		out.Modules[i] = m
	}
	return out
}

// Validate performs strict shape validation of an edited document. Stored
// documents that fail it are still evaluated fail-closed; Validate is for
// rejecting administrator input before it is persisted.
func Validate(p PermissionSet) error {
	var issues []string
	seen := make(map[Module]struct{}, len(p.Modules))
	for i, m := range p.Modules {
		mod, ok := ParseModule(m.Name)
		if !ok {
			issues = append(issues, fmt.Sprintf("modules[%d]: unknown module %q", i, m.Name))
			continue
		}
		if _, dup := seen[mod]; dup {
			issues = append(issues, fmt.Sprintf("modules[%d]: duplicate module %q", i, m.Name))
		}
		seen[mod] = struct{}{}
		keys := make(map[string]struct{}, len(m.Features))
		for j, f := range m.Features {
			key := strings.TrimSpace(f.Key)
			if key == "" {
				issues = append(issues, fmt.Sprintf("modules[%d].features[%d]: empty key", i, j))
				continue
			}
			if _, dup := keys[key]; dup {
				issues = append(issues, fmt.Sprintf("modules[%d].features[%d]: duplicate key %q", i, j, key))
			}
			keys[key] = struct{}{}
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return &MalformedError{Issues: issues}
}

// EnableModule returns a copy of p with module added as visible and every
// catalog feature present with no actions granted. Enabling an already
// present module leaves p unchanged.
func EnableModule(p PermissionSet, module Module) (PermissionSet, error) {
	spec, ok := module.Spec()
	if !ok {
		return p, fmt.Errorf("access: enable module %q: %w", module, ErrUnknownModule)
	}
	if _, exists := p.Module(string(module)); exists {
		return p.Clone(), nil
	}
	out := p.Clone()
	grant := ModuleGrant{Name: string(spec.Name), Dashboard: true, Features: make([]FeatureGrant, 0, len(spec.Features))}
	for _, f := range spec.Features {
		grant.Features = append(grant.Features, FeatureGrant{Key: f.Key})
	}
	out.Modules = append(out.Modules, grant)
	return out, nil
}

// DisableModule returns a copy of p without module.
func DisableModule(p PermissionSet, module Module) PermissionSet {
	out := p.Clone()
	kept := out.Modules[:0]
	for _, m := range out.Modules {
		if got, ok := ParseModule(m.Name); ok && got == module {
			continue
		}
		kept = append(kept, m)
	}
	out.Modules = kept
	return out
}

// SetFeatureAction returns a copy of p with one action flag changed. The
// module must already be enabled; a feature missing from the module is added.
func SetFeatureAction(p PermissionSet, module Module, feature string, action Action, value bool) (PermissionSet, error) {
	if !action.Valid() {
		return p, fmt.Errorf("access: set %s/%s: %w", module, feature, ErrUnknownAction)
	}
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return p, errors.New("access: feature key required")
	}
	out := p.Clone()
	for i, m := range out.Modules {
		if got, ok := ParseModule(m.Name); !ok || got != module {
			continue
		}
		for j, f := range m.Features {
			if f.Key == feature {
				out.Modules[i].Features[j] = f.With(action, value)
				return out, nil
			}
		}
		out.Modules[i].Features = append(out.Modules[i].Features, FeatureGrant{Key: feature}.With(action, value))
		return out, nil
	}
	return p, fmt.Errorf("access: set %s/%s: module not enabled", module, feature)
}

// Exceeding lists what p grants beyond the holder of e: visible modules as
// "module" and granted actions as "module/feature/action". A super
// evaluator holds everything, so the list is empty.
func Exceeding(e Evaluator, p PermissionSet) []string {
	if e.IsSuper() {
		return nil
	}
	var out []string
	for _, m := range p.Modules {
		if m.Dashboard && !e.HasModuleAccess(m.Name) {
			out = append(out, m.Name)
		}
		for _, f := range m.Features {
			for _, a := range Actions() {
				if f.Allows(a) && !e.CanPerformAction(m.Name, f.Key, a) {
					out = append(out, m.Name+"/"+f.Key+"/"+string(a))
				}
			}
		}
	}
	return out
}
