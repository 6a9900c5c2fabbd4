package access

import (
	"strings"

	"golang.org/x/text/cases"
)

// Module identifies a top-level functional area.
type Module string

// Module catalog. The order of the catalog slice below is the navigation order.
const (
	ModuleDashboard     Module = "dashboard"
	ModuleOrders        Module = "orders"
	ModuleManufacturing Module = "manufacturing"
	ModuleDispatches    Module = "dispatches"
	ModuleSales         Module = "sales"
	ModuleAccounts      Module = "accounts"
	ModuleInventory     Module = "inventory"
	ModuleCustomers     Module = "customers"
	ModuleSuppliers     Module = "suppliers"
	ModulePurchases     Module = "purchases"
	ModuleSettings      Module = "settings"
	ModuleCompanies     Module = "companies"
	ModuleProfile       Module = "profile"
)

// Feature describes one capability inside a module.
type Feature struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ModuleSpec is a catalog entry.
type ModuleSpec struct {
	Name     Module    `json:"name"`
	Label    string    `json:"label"`
	Features []Feature `json:"features"`
}

var catalog = []ModuleSpec{
	{Name: ModuleDashboard, Label: "Dashboard", Features: []Feature{
		{Key: "overview", Label: "Overview"},
		{Key: "analytics", Label: "Analytics"},
	}},
	{Name: ModuleOrders, Label: "Orders", Features: []Feature{
		{Key: "allOrders", Label: "All Orders"},
		{Key: "orderReport", Label: "Order Reports"},
		{Key: "indent", Label: "Indent Management"},
	}},
	{Name: ModuleManufacturing, Label: "Manufacturing", Features: []Feature{
		{Key: "allJobs", Label: "All Jobs"},
		{Key: "productionSchedule", Label: "Production Schedule"},
		{Key: "qualityControl", Label: "Quality Control"},
	}},
	{Name: ModuleDispatches, Label: "Dispatches", Features: []Feature{
		{Key: "allDispatches", Label: "All Dispatches"},
		{Key: "createDispatch", Label: "Create Dispatch"},
		{Key: "trackingInfo", Label: "Tracking Info"},
		{Key: "dispatchNotes", Label: "Dispatch Notes"},
		{Key: "proofOfDelivery", Label: "Proof of Delivery"},
	}},
	{Name: ModuleSales, Label: "Sales", Features: []Feature{
		{Key: "myIndent", Label: "My Indent"},
		{Key: "myCustomers", Label: "My Customers"},
		{Key: "myDeliveries", Label: "My Deliveries"},
		{Key: "myInvoices", Label: "My Invoices"},
		{Key: "myLedger", Label: "My Ledger"},
		{Key: "allIndents", Label: "All Indents"},
		{Key: "allInvoices", Label: "All Invoices"},
	}},
	{Name: ModuleAccounts, Label: "Accounts", Features: []Feature{
		{Key: "transactions", Label: "Transactions"},
		{Key: "balanceSheet", Label: "Balance Sheet"},
		{Key: "reports", Label: "Financial Reports"},
		{Key: "paymentRegister", Label: "Payment Register"},
		{Key: "creditNotes", Label: "Credit Notes"},
		{Key: "ledgerReport", Label: "Ledger Report"},
	}},
	{Name: ModuleInventory, Label: "Inventory", Features: []Feature{
		{Key: "items", Label: "Items"},
		{Key: "categories", Label: "Categories"},
		{Key: "stockIn", Label: "Stock In"},
		{Key: "stockOut", Label: "Stock Out"},
	}},
	{Name: ModuleCustomers, Label: "Customers", Features: []Feature{
		{Key: "allCustomers", Label: "All Customers"},
		{Key: "createCustomer", Label: "Create Customer"},
		{Key: "customerReports", Label: "Customer Reports"},
	}},
	{Name: ModuleSuppliers, Label: "Suppliers", Features: []Feature{
		{Key: "allSuppliers", Label: "All Suppliers"},
		{Key: "createSupplier", Label: "Create Supplier"},
		{Key: "supplierReports", Label: "Supplier Reports"},
	}},
	{Name: ModulePurchases, Label: "Purchases", Features: []Feature{
		{Key: "allPurchases", Label: "All Purchases"},
	}},
	{Name: ModuleSettings, Label: "Settings", Features: []Feature{
		{Key: "general", Label: "General Settings"},
		{Key: "users", Label: "User Management"},
		{Key: "system", Label: "System Configuration"},
	}},
	{Name: ModuleCompanies, Label: "Companies", Features: []Feature{
		{Key: "allCompanies", Label: "All Companies"},
	}},
	{Name: ModuleProfile, Label: "Profile", Features: []Feature{
		{Key: "myProfile", Label: "My Profile"},
	}},
}

// moduleIndex maps a module to its position in the catalog.
var moduleIndex = func() map[Module]int {
	idx := make(map[Module]int, len(catalog))
	for i, spec := range catalog {
		idx[spec.Name] = i
	}
	return idx
}()

var folder = cases.Fold()

// Catalog returns a copy of the module catalog in navigation order.
func Catalog() []ModuleSpec {
	out := make([]ModuleSpec, len(catalog))
	for i, spec := range catalog {
		out[i] = ModuleSpec{Name: spec.Name, Label: spec.Label, Features: append([]Feature(nil), spec.Features...)}
	}
	return out
}

// Modules lists catalog module names in navigation order.
func Modules() []Module {
	out := make([]Module, len(catalog))
	for i, spec := range catalog {
		out[i] = spec.Name
	}
	return out
}

// ParseModule resolves a free-typed module identifier against the catalog.
// Matching ignores case and surrounding whitespace.
func ParseModule(name string) (Module, bool) {
	m := Module(folder.String(strings.TrimSpace(name)))
	if _, ok := moduleIndex[m]; !ok {
		return "", false
	}
	return m, true
}

// Spec returns the catalog entry for m.
func (m Module) Spec() (ModuleSpec, bool) {
	i, ok := moduleIndex[m]
	if !ok {
		return ModuleSpec{}, false
	}
	return catalog[i], true
}

// Label returns the display label, or the raw name for unknown modules.
func (m Module) Label() string {
	if spec, ok := m.Spec(); ok {
		return spec.Label
	}
	return string(m)
}

func (m Module) String() string { return string(m) }

// Action is the finest grain of permission.
type Action string

const (
	ActionView   Action = "view"
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionAlter  Action = "alter"
)

var actions = [...]Action{ActionView, ActionAdd, ActionEdit, ActionDelete, ActionAlter}

// Actions returns every recognised action kind.
func Actions() []Action {
	return append([]Action(nil), actions[:]...)
}

// ParseAction accepts only the five recognised literals.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	return a, a.Valid()
}

// Valid reports whether a is one of the recognised action kinds.
func (a Action) Valid() bool {
	return a.bit() != 0
}

func (a Action) bit() actionMask {
	switch a {
	case ActionView:
		return maskView
	case ActionAdd:
		return maskAdd
	case ActionEdit:
		return maskEdit
	case ActionDelete:
		return maskDelete
	case ActionAlter:
		return maskAlter
	}
	return 0
}

func (a Action) String() string { return string(a) }

type actionMask uint8

const (
	maskView actionMask = 1 << iota
	maskAdd
	maskEdit
	maskDelete
	maskAlter

	maskAll = maskView | maskAdd | maskEdit | maskDelete | maskAlter
)
