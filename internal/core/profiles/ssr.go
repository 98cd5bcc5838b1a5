package profiles

import "github.com/JonMunkholm/closeplan/internal/core"

// SSRRecords is the registry key of the SSR review record import.
const SSRRecords = "ssr_records"

func init() {
	registerSSRRecords()
}

func registerSSRRecords() {
	core.Register(&core.Profile{
		Key:   SSRRecords,
		Label: "SSR Review Records",
		Table: "ssr_records",
		Columns: []core.Column{
			{Header: "OpportunityID", Field: "Opportunity__c", DBColumn: "opportunity_id"},
			{Header: "Opportunity Name", Field: "OpportunityName"},
			{Header: "Review Type", Field: "Review_Type__c", DBColumn: "review_type", Kind: core.KindPicklist},
			{Header: "Review Date", Field: "Review_Date__c", DBColumn: "review_date", Kind: core.KindDate},
			{Header: "Stage", Field: "Stage__c", DBColumn: "stage", Kind: core.KindPicklist},
			{Header: "Status", Field: "Status__c", DBColumn: "status", Kind: core.KindPicklist},
			{Header: "Notes", Field: "Notes__c", DBColumn: "notes"},
		},
		Picklists: []core.Picklist{
			{Field: "Review_Type__c", Values: []string{"Deal Review", "Solution Review", "Pricing Review", "Contract Review"}},
			{Field: "Stage__c", Values: []string{"Qualify", "Shape", "Propose", "Negotiate", "Closed"}},
			{Field: "Status__c", Values: []string{"Not Started", "In Progress", "Completed", "Cancelled"}},
		},
		Defaults:    map[string]string{"Status__c": "In Progress"},
		Fallbacks:   map[string]string{"OpportunityName": "Opportunity__c"},
		Mandatory:   []string{"Review_Type__c", "Review_Date__c", "Stage__c", "Opportunity__c"},
		DisplayOnly: []string{"OpportunityName"},
		ScopeField:  "Opportunity__c",
	})
}
