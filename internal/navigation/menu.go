// Package navigation decides which menu entries and action buttons a client
// should render. It reads the same evaluator as the server gate but never
// authorizes anything; the gate re-checks every request independently.
package navigation

import "github.com/plantdesk/plantdesk/internal/access"

// Entry is one static sidebar definition.
type Entry struct {
	Label      string
	Path       string
	Module     access.Module
	Submodules []Submodule
}

// Submodule is a sidebar child gated by view on its feature.
type Submodule struct {
	Label   string
	Path    string
	Feature string
}

var entries = []Entry{
	{Label: "Dashboard", Path: "/dashboard", Module: access.ModuleDashboard},
	{Label: "Orders", Path: "/orders", Module: access.ModuleOrders},
	{Label: "Manufacturing", Path: "/manufacturing", Module: access.ModuleManufacturing},
	{Label: "Dispatches", Path: "/dispatches", Module: access.ModuleDispatches, Submodules: []Submodule{
		{Label: "Dispatch Notes", Path: "/dispatches/notes", Feature: "dispatchNotes"},
		{Label: "Proof of Delivery", Path: "/dispatches/delivery", Feature: "proofOfDelivery"},
	}},
	{Label: "Sales", Path: "/sales", Module: access.ModuleSales, Submodules: []Submodule{
		{Label: "My Indent", Path: "/sales/indent", Feature: "myIndent"},
		{Label: "My Customers", Path: "/sales/customers", Feature: "myCustomers"},
		{Label: "My Deliveries", Path: "/sales/deliveries", Feature: "myDeliveries"},
		{Label: "My Invoices", Path: "/sales/invoices", Feature: "myInvoices"},
		{Label: "My Ledger", Path: "/sales/ledger", Feature: "myLedger"},
	}},
	{Label: "Accounts", Path: "/accounts", Module: access.ModuleAccounts, Submodules: []Submodule{
		{Label: "Payment Register", Path: "/accounts/payments", Feature: "paymentRegister"},
		{Label: "Credit Notes", Path: "/accounts/credits", Feature: "creditNotes"},
		{Label: "Ledger Report", Path: "/accounts/ledger", Feature: "ledgerReport"},
	}},
	{Label: "Inventory", Path: "/inventory", Module: access.ModuleInventory},
	{Label: "Customers", Path: "/customers", Module: access.ModuleCustomers},
	{Label: "Suppliers", Path: "/suppliers", Module: access.ModuleSuppliers},
	{Label: "Companies", Path: "/companies", Module: access.ModuleCompanies},
	{Label: "Purchases", Path: "/purchases", Module: access.ModulePurchases},
}

var (
	profileEntry     = Entry{Label: "Profile", Path: "/profile", Module: access.ModuleProfile}
	permissionsEntry = Entry{Label: "Role & Permission Management", Path: "/role-permission-management", Module: access.ModuleSettings}
	settingsEntry    = Entry{Label: "Settings", Path: "/settings", Module: access.ModuleSettings}
)

// MenuItem is a rendered sidebar entry.
type MenuItem struct {
	Label      string        `json:"label"`
	Path       string        `json:"path"`
	Module     access.Module `json:"module"`
	Submodules []MenuLink    `json:"submodules,omitempty"`
}

// MenuLink is a rendered sidebar child.
type MenuLink struct {
	Label   string `json:"label"`
	Path    string `json:"path"`
	Feature string `json:"feature"`
}
