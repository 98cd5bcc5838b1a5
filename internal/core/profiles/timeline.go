package profiles

import "github.com/JonMunkholm/closeplan/internal/core"

// TimelineTasks is the registry key of the close-plan timeline import.
const TimelineTasks = "timeline_tasks"

func init() {
	registerTimelineTasks()
}

func registerTimelineTasks() {
	core.Register(&core.Profile{
		Key:   TimelineTasks,
		Label: "Close Plan Timeline Tasks",
		Table: "timeline_tasks",
		Columns: []core.Column{
			{Header: "Workstream", Field: "workstream", DBColumn: "workstream", Kind: core.KindPicklist},
			{Header: "Task", Field: "tasks", DBColumn: "task", Kind: core.KindPicklist},
			{Header: "Category", Field: "category", DBColumn: "category", Kind: core.KindPicklist},
			{Header: "Type", Field: "milestoneType", DBColumn: "milestone_type", Kind: core.KindPicklist},
			{Header: "Status", Field: "status", DBColumn: "status", Kind: core.KindPicklist},
			{Header: "Workstream (If Other)", Field: "workstreamIfOther", DBColumn: "workstream_if_other"},
			{Header: "Task (If Other)", Field: "taskIfOther", DBColumn: "task_if_other"},
			{Header: "Start Date", Field: "startDate", DBColumn: "start_date", Kind: core.KindDate},
			{Header: "End Date", Field: "endDate", DBColumn: "end_date", Kind: core.KindDate},
			{Header: "ACN Owner", Field: "acnOwnerName"},
			{Header: "Client Owner", Field: "clientOwnerName"},
			{Header: "Comments", Field: "comments", DBColumn: "comments"},
			{Header: "Dependency", Field: "dependencyName"},
		},
		Significant: []string{"Workstream", "Task", "Category", "Type", "Status"},
		Picklists: []core.Picklist{
			{Field: "workstream", Values: []string{
				"Accounts Payable", "Accounts Receivable", "Fixed Assets", "General Ledger",
				"Intercompany", "Payroll", "Reporting", "Tax", "Treasury", core.OtherValue,
			}},
			{Field: "tasks", Values: []string{
				"Accruals", "Bank Reconciliation", "Depreciation", "Flux Analysis",
				"Journal Entries", "Management Review", "Revenue Recognition",
				"Subledger Close", "Variance Review", core.OtherValue,
			}},
			{Field: "category", Values: []string{"Task", "Milestone"}},
			{Field: "milestoneType", Values: []string{"Pre-Close", "Close", "Post-Close", "Reporting"}},
			{Field: "status", Values: []string{"Not Started", "In Progress", "Completed", "Blocked"}},
		},
		Companions: map[string]string{
			"workstream": "workstreamIfOther",
			"tasks":      "taskIfOther",
		},
		DateRule: &core.DateRule{
			CategoryField:  "category",
			StartField:     "startDate",
			EndField:       "endDate",
			MilestoneValue: "Milestone",
		},
		Owners: []core.OwnerLink{
			{NameField: "acnOwnerName", LinkField: "acnOwnerId", DBColumn: "acn_owner_id", Group: core.OwnerGroupA},
			{NameField: "clientOwnerName", LinkField: "clientOwnerId", DBColumn: "client_owner_id", Group: core.OwnerGroupB},
		},
		Dependency: &core.DependencyLink{
			NameField: "dependencyName",
			LinkField: "dependencyId",
			DBColumn:  "dependency_id",
		},
		DisplayNameFields: []string{"taskIfOther", "tasks"},
		Mandatory:         []string{"workstream", "tasks", "category", "milestoneType", "status", "startDate", "endDate"},
		DisplayOnly:       []string{"acnOwnerName", "clientOwnerName", "dependencyName"},
		ScopeField:        "closePlanId",
		ScopeDBColumn:     "close_plan_id",
	})
}
