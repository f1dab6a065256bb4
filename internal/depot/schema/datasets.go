package schema

// Default returns the registry of production datasets. Descriptors are static
// configuration: column lists match the upstream export formats positionally
// and are not editable at runtime.
func Default() *Registry {
	return NewRegistry(
		Deposits,
		Blockades,
		Transactions,
		InterestRates,
		ExoneratedClients,
	)
}

var Deposits = &Dataset{
	Name: "deposits",
	Columns: []Column{
		{Name: "client_id", Required: true, Rule: RuleStripUpper},
		{Name: "deposit_number", Required: true, Rule: RuleStripUpper},
		{Name: "account_number", Required: true, Rule: RuleStripUpper},
		{Name: "amount", Required: true, Rule: RuleTrim},
		{Name: "currency", Required: true, Rule: RuleStripUpper},
		{Name: "start_date", Rule: RuleTrim},
		{Name: "end_date", Rule: RuleTrim},
		{Name: "status", Rule: RuleStripUpper},
	},
	Source:    Source{Kind: SourceDelimited, Delimiter: '|'},
	Claimable: true,
}

// Blockades exports arrive as workbooks with a title row above the header and
// data starting two rows below the header. A client with several blockades is
// packed into one physical row with ]-separated values.
var Blockades = &Dataset{
	Name: "blockades",
	Columns: []Column{
		{Name: "client_id", Required: true, Rule: RuleStripUpper},
		{Name: "account_number", Required: true, Rule: RuleStripUpper},
		{Name: "blockade_type", Required: true, Rule: RuleStripUpper},
		{Name: "amount", Rule: RuleTrim},
		{Name: "currency", Rule: RuleStripUpper},
		{Name: "reason", Rule: RuleCollapseUpper},
		{Name: "placed_on", Rule: RuleTrim},
	},
	Source:              Source{Kind: SourceWorkbook, HeaderRow: 1, DataRow: 3},
	Claimable:           true,
	MultiValueSeparator: "]",
}

var Transactions = &Dataset{
	Name: "transactions",
	Columns: []Column{
		{Name: "client_id", Required: true, Rule: RuleStripUpper},
		{Name: "account_number", Required: true, Rule: RuleStripUpper},
		{Name: "operation_date", Required: true, Rule: RuleTrim},
		{Name: "operation_type", Required: true, Rule: RuleStripUpper},
		{Name: "amount", Required: true, Rule: RuleTrim},
		{Name: "currency", Required: true, Rule: RuleStripUpper},
		{Name: "counterparty_account", Rule: RuleStripUpper},
		{Name: "title", Rule: RuleCollapseUpper},
	},
	Source:    Source{Kind: SourceDelimited, Delimiter: '|'},
	Claimable: true,
}

var InterestRates = &Dataset{
	Name: "interest_rates",
	Columns: []Column{
		{Name: "product_code", Required: true, Rule: RuleStripUpper},
		{Name: "old_rate", Rule: RuleTrim},
		{Name: "new_rate", Required: true, Rule: RuleTrim},
		{Name: "effective_date", Required: true, Rule: RuleTrim},
	},
	Source:    Source{Kind: SourceDelimited, Delimiter: '|'},
	Claimable: true,
}

var ExoneratedClients = &Dataset{
	Name: "exonerated_clients",
	Columns: []Column{
		{Name: "client_id", Required: true, Rule: RuleStripUpper},
		{Name: "client_name", Required: true, Rule: RuleCollapseUpper},
		{Name: "exoneration_type", Required: true, Rule: RuleStripUpper},
		{Name: "valid_from", Rule: RuleTrim},
		{Name: "valid_to", Rule: RuleTrim},
	},
	Source:    Source{Kind: SourceWorkbook, HeaderRow: 0, DataRow: 1},
	Claimable: true,
}
