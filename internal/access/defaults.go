package access

// Generate returns the canonical permission document for a newly provisioned
// principal. It is pure and deterministic. Roles without a curated default,
// including values outside the enumerated set, get an empty module list.
func Generate(role Role, unit string) PermissionSet {
	set := PermissionSet{
		Role:    role.Token(),
		Unit:    unit,
		Modules: []ModuleGrant{},
	}
	switch role {
	case RoleSuperUser:
		set.CanAccessAllUnits = true
		set.Modules = fullGrant()
	case RoleSales:
		set.Modules = salesGrant()
	}
	return set
}

// fullGrant derives the super-user document from the catalog so that a new
// catalog module or feature is granted without further edits here.
func fullGrant() []ModuleGrant {
	out := make([]ModuleGrant, 0, len(catalog))
	for _, spec := range catalog {
		m := ModuleGrant{Name: string(spec.Name), Dashboard: true, Features: make([]FeatureGrant, 0, len(spec.Features))}
		for _, f := range spec.Features {
			m.Features = append(m.Features, grantFromMask(f.Key, maskAll))
		}
		out = append(out, m)
	}
	return out
}

func salesGrant() []ModuleGrant {
	return []ModuleGrant{
		{
			Name:      string(ModuleSales),
			Dashboard: true,
			Features: []FeatureGrant{
				{Key: "myIndent", View: true, Add: true, Edit: true},
				{Key: "myCustomers", View: true, Add: true},
				{Key: "myDeliveries", View: true},
				{Key: "myInvoices", View: true},
				{Key: "myLedger", View: true},
			},
		},
		{
			Name:      string(ModuleOrders),
			Dashboard: true,
			Features: []FeatureGrant{
				{Key: "indent", View: true, Edit: true},
				{Key: "orderReport", View: true},
			},
		},
	}
}
