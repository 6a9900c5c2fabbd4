package access

// Reason explains an evaluation outcome. It is meant for logs and for
// choosing UI copy, never for the caller-visible denial message.
type Reason string

const (
	ReasonSuper          Reason = "super"
	ReasonProfile        Reason = "profile"
	ReasonGranted        Reason = "granted"
	ReasonUnknownModule  Reason = "unknown_module"
	ReasonModuleMissing  Reason = "module_missing"
	ReasonFeatureMissing Reason = "feature_missing"
	ReasonActionDenied   Reason = "action_denied"
	ReasonUnknownAction  Reason = "unknown_action"
	ReasonUnitMismatch   Reason = "unit_mismatch"
)

// Decision is the outcome of a feature-level check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// profileActions are always granted on the profile module.
const profileActions = maskView | maskEdit

type compiledModule struct {
	dashboard bool
	features  map[string]actionMask
}

// Evaluator answers permission questions for one principal. It is built once
// per loaded PermissionSet and is immutable, so it can be shared between
// goroutines.
type Evaluator struct {
	role    Role
	set     PermissionSet
	super   bool
	modules []*compiledModule
}

// Evaluate compiles set for the principal holding role. Module names are
// resolved once against the catalog; names outside it are never granted.
// When a module or feature appears more than once the grants are intersected.
func Evaluate(role Role, set PermissionSet) Evaluator {
	e := Evaluator{role: role, set: set, super: IsSuper(role, set)}
	if e.super {
		return e
	}
	e.modules = make([]*compiledModule, len(catalog))
	for _, m := range set.Modules {
		mod, ok := ParseModule(m.Name)
		if !ok {
			continue
		}
		slot := moduleIndex[mod]
		features := make(map[string]actionMask, len(m.Features))
		seen := make(map[string]bool, len(m.Features))
		for _, f := range m.Features {
			if seen[f.Key] {
				features[f.Key] &= f.mask()
				continue
			}
			seen[f.Key] = true
			features[f.Key] = f.mask()
		}
		prev := e.modules[slot]
		if prev == nil {
			e.modules[slot] = &compiledModule{dashboard: m.Dashboard, features: features}
			continue
		}
		merged := &compiledModule{dashboard: prev.dashboard && m.Dashboard, features: make(map[string]actionMask)}
		for key, mask := range prev.features {
			if other, ok := features[key]; ok {
				merged.features[key] = mask & other
			}
		}
		e.modules[slot] = merged
	}
	return e
}

func (e Evaluator) module(m Module) *compiledModule {
	i, ok := moduleIndex[m]
	if !ok || i >= len(e.modules) {
		return nil
	}
	return e.modules[i]
}

// Role returns the principal role the evaluator was built for.
func (e Evaluator) Role() Role { return e.role }

// IsSuper reports whether the super override is in effect.
func (e Evaluator) IsSuper() bool { return e.super }

// HasModuleAccess reports whether module is visible in navigation.
func (e Evaluator) HasModuleAccess(module string) bool {
	if e.super {
		return true
	}
	mod, ok := ParseModule(module)
	if !ok {
		return false
	}
	if mod == ModuleProfile {
		return true
	}
	cm := e.module(mod)
	return cm != nil && cm.dashboard
}

// HasFeatureAccess reports whether action is granted on feature of module.
func (e Evaluator) HasFeatureAccess(module, feature string, action Action) bool {
	return e.Decide(module, feature, action).Allowed
}

// CanPerformAction is the entry point used by enforcement and UI code alike.
// It currently performs the same check as HasFeatureAccess.
func (e Evaluator) CanPerformAction(module, feature string, action Action) bool {
	return e.HasFeatureAccess(module, feature, action)
}

// Decide resolves a feature-level check and reports why. Actions outside the
// closed set are denied even under the super override.
func (e Evaluator) Decide(module, feature string, action Action) Decision {
	bit := action.bit()
	if bit == 0 {
		return Decision{Reason: ReasonUnknownAction}
	}
	if e.super {
		return Decision{Allowed: true, Reason: ReasonSuper}
	}
	mod, ok := ParseModule(module)
	if !ok {
		return Decision{Reason: ReasonUnknownModule}
	}
	if mod == ModuleProfile && profileActions&bit != 0 {
		return Decision{Allowed: true, Reason: ReasonProfile}
	}
	cm := e.module(mod)
	if cm == nil {
		return Decision{Reason: ReasonModuleMissing}
	}
	mask, ok := cm.features[feature]
	if !ok {
		return Decision{Reason: ReasonFeatureMissing}
	}
	if mask&bit == 0 {
		return Decision{Reason: ReasonActionDenied}
	}
	return Decision{Allowed: true, Reason: ReasonGranted}
}

// AccessibleModules lists the navigable modules in catalog order.
func (e Evaluator) AccessibleModules() []Module {
	out := make([]Module, 0, len(catalog))
	for _, spec := range catalog {
		if e.super {
			out = append(out, spec.Name)
			continue
		}
		if cm := e.module(spec.Name); cm != nil && cm.dashboard {
			out = append(out, spec.Name)
		}
	}
	return out
}

// ModuleFeatures returns the effective feature grants of module. Super
// principals see every catalog feature fully granted.
func (e Evaluator) ModuleFeatures(module string) []FeatureGrant {
	mod, ok := ParseModule(module)
	if !ok {
		return nil
	}
	spec := catalog[moduleIndex[mod]]
	if e.super {
		out := make([]FeatureGrant, 0, len(spec.Features))
		for _, f := range spec.Features {
			out = append(out, grantFromMask(f.Key, maskAll))
		}
		return out
	}
	cm := e.module(mod)
	if cm == nil {
		return nil
	}
	out := make([]FeatureGrant, 0, len(cm.features))
	// Catalog features first, in catalog order, then free-form keys.
	listed := make(map[string]bool, len(spec.Features))
	for _, f := range spec.Features {
		if mask, ok := cm.features[f.Key]; ok {
			out = append(out, grantFromMask(f.Key, mask))
			listed[f.Key] = true
		}
	}
	for _, m := range e.set.Modules {
		if got, ok := ParseModule(m.Name); !ok || got != mod {
			continue
		}
		for _, f := range m.Features {
			if listed[f.Key] {
				continue
			}
			listed[f.Key] = true
			out = append(out, grantFromMask(f.Key, cm.features[f.Key]))
		}
	}
	return out
}

// CanAccessAllUnits reports whether unit scoping is lifted.
func (e Evaluator) CanAccessAllUnits() bool {
	return e.super || e.set.CanAccessAllUnits
}

// PermissionRole returns the role token stored in the document, falling back
// to the token of the principal role.
func (e Evaluator) PermissionRole() string {
	if e.set.Role != "" {
		return e.set.Role
	}
	return e.role.Token()
}

// CanManageUsers reports whether the principal may open user administration.
func (e Evaluator) CanManageUsers() bool {
	return e.role == RoleSuperUser || e.role == RoleUnitHead
}

// CanAccessSettings reports whether the principal may open system settings.
func (e Evaluator) CanAccessSettings() bool {
	return e.role == RoleSuperUser
}

// HasModuleAccess evaluates a single module query without keeping the index.
func HasModuleAccess(set PermissionSet, role Role, module string) bool {
	return Evaluate(role, set).HasModuleAccess(module)
}

// HasFeatureAccess evaluates a single feature query without keeping the index.
func HasFeatureAccess(set PermissionSet, role Role, module, feature string, action Action) bool {
	return Evaluate(role, set).HasFeatureAccess(module, feature, action)
}

// CanPerformAction evaluates a single action query without keeping the index.
func CanPerformAction(set PermissionSet, role Role, module, feature string, action Action) bool {
	return Evaluate(role, set).CanPerformAction(module, feature, action)
}

// AccessibleModules evaluates the navigable modules without keeping the index.
func AccessibleModules(set PermissionSet, role Role) []Module {
	return Evaluate(role, set).AccessibleModules()
}
