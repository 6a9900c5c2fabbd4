package navigation

import "github.com/plantdesk/plantdesk/internal/access"

// Affordances carries the five action flags of one feature, as the client
// uses them to show or hide buttons and form controls.
type Affordances struct {
	View   bool `json:"view"`
	Add    bool `json:"add"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	Alter  bool `json:"alter"`
}

// Filter answers visibility questions for one principal.
type Filter struct {
	eval access.Evaluator
	unit string
}

// NewFilter compiles p once for repeated render-time queries.
func NewFilter(p access.Principal) Filter {
	return Filter{eval: p.Evaluator(), unit: p.Unit}
}

// Menu returns the sidebar in display order. Modules whose submodules are all
// hidden still render as a plain entry.
func (f Filter) Menu() []MenuItem {
	out := make([]MenuItem, 0, len(entries)+3)
	for _, e := range entries {
		if !f.eval.HasModuleAccess(string(e.Module)) {
			continue
		}
		item := MenuItem{Label: e.Label, Path: e.Path, Module: e.Module}
		for _, sub := range e.Submodules {
			if f.eval.HasFeatureAccess(string(e.Module), sub.Feature, access.ActionView) {
				item.Submodules = append(item.Submodules, MenuLink(sub))
			}
		}
		out = append(out, item)
	}
	out = append(out, MenuItem{Label: profileEntry.Label, Path: profileEntry.Path, Module: profileEntry.Module})
	if f.eval.Role() == access.RoleSuperUser {
		out = append(out, MenuItem{Label: permissionsEntry.Label, Path: permissionsEntry.Path, Module: permissionsEntry.Module})
	}
	if f.eval.HasModuleAccess(string(settingsEntry.Module)) {
		out = append(out, MenuItem{Label: settingsEntry.Label, Path: settingsEntry.Path, Module: settingsEntry.Module})
	}
	return out
}

// Affordances returns the action flags for feature of module.
func (f Filter) Affordances(module, feature string) Affordances {
	return Affordances{
		View:   f.Show(module, feature, access.ActionView),
		Add:    f.Show(module, feature, access.ActionAdd),
		Edit:   f.Show(module, feature, access.ActionEdit),
		Delete: f.Show(module, feature, access.ActionDelete),
		Alter:  f.Show(module, feature, access.ActionAlter),
	}
}

// Show reports whether a button for action should be rendered.
func (f Filter) Show(module, feature string, action access.Action) bool {
	return f.eval.CanPerformAction(module, feature, action)
}

// View is the payload delivered to the client once per session.
type View struct {
	Role              access.Role                       `json:"role"`
	PermissionRole    string                            `json:"permissionRole"`
	Unit              string                            `json:"unit"`
	CanAccessAllUnits bool                              `json:"canAccessAllUnits"`
	CanManageUsers    bool                              `json:"canManageUsers"`
	CanAccessSettings bool                              `json:"canAccessSettings"`
	Modules           []access.Module                   `json:"modules"`
	Menu              []MenuItem                        `json:"menu"`
	Affordances       map[string]map[string]Affordances `json:"affordances"`
}

// View builds the client payload. Affordances are keyed by module, then by
// feature, and cover every accessible module's effective features.
func (f Filter) View() View {
	modules := f.eval.AccessibleModules()
	affordances := make(map[string]map[string]Affordances, len(modules))
	for _, m := range modules {
		features := f.eval.ModuleFeatures(string(m))
		if len(features) == 0 {
			continue
		}
		byKey := make(map[string]Affordances, len(features))
		for _, g := range features {
			byKey[g.Key] = f.Affordances(string(m), g.Key)
		}
		affordances[string(m)] = byKey
	}
	return View{
		Role:              f.eval.Role(),
		PermissionRole:    f.eval.PermissionRole(),
		Unit:              f.unit,
		CanAccessAllUnits: f.eval.CanAccessAllUnits(),
		CanManageUsers:    f.eval.CanManageUsers(),
		CanAccessSettings: f.eval.CanAccessSettings(),
		Modules:           modules,
		Menu:              f.Menu(),
		Affordances:       affordances,
	}
}

// Build is a shorthand for NewFilter(p).View().
func Build(p access.Principal) View {
	return NewFilter(p).View()
}
