package template

func str(name string) Field  { return Field{Name: name, Kind: KindString} }
func num(name string) Field  { return Field{Name: name, Kind: KindNumber} }
func key(name string) Field  { return Field{Name: name, Kind: KindRequiredString} }
func list(name string) Field { return Field{Name: name, Kind: KindStringList} }

func group(name string, fields ...Field) Group {
	return Group{Name: name, Fields: fields}
}

func keyValue(k, sheet string, groups ...Group) Section {
	return Section{Key: k, SheetName: sheet, Shape: ShapeKeyValue, Groups: groups}
}

func tabular(k, sheet string, cols ...Field) Section {
	return Section{Key: k, SheetName: sheet, Shape: ShapeTabular, Columns: cols}
}

func reference(k, sheet string, categories ...string) Section {
	fields := make([]Field, 0, len(categories))
	for _, c := range categories {
		fields = append(fields, list(c))
	}
	return Section{Key: k, SheetName: sheet, Shape: ShapeReference, Groups: []Group{{Fields: fields}}}
}

var catalog = map[ID]Template{
	PrivateEquityFund: privateEquityFund(),
	PortfolioSummary:  portfolioSummary(),
}

func privateEquityFund() Template {
	return Template{
		ID:          PrivateEquityFund,
		Name:        "Private Equity Fund Detailed Template",
		Description: "Comprehensive fund and investment data extraction",
		Version:     "1.3.0",
		Color:       "2E86AB",
		FileSuffix:  "_Private_Equity",
		Focus:       "Focus on: Fund details, manager information, financial positions, portfolio companies, investments",
		Sections: []Section{
			keyValue("Fund_and_Investment_Vehicle_Information", "Fund and Investment Vehicle Information",
				group("Fund_Details",
					str("Fund_Name"), str("Fund_Currency"), str("Fund_Legal_Structure"), str("Fund_Domicile"),
					num("Fund_Size"), num("Total_Commitments"), num("Vintage_Year"), str("Financial_Year_End")),
				group("Key_Dates",
					str("Inception_Date"), str("Final_Closing_Date"), str("Investment_Period_End_Date")),
				group("Fee_Structure",
					num("Management_Fee_Rate"), num("Carried_Interest_Percentage"), num("Hurdle_Rate")),
				group("Investment_Focus",
					str("Geography_Focus"), str("Sector_Focus"), str("Stage_Focus")),
			),
			keyValue("Fund_Manager", "Fund Manager",
				group("Management_Company",
					str("Management_Company_Name"), str("Manager_Website"), str("Primary_Contact"),
					str("Contact_Email"), str("Contact_Phone"), str("Office_Address")),
				group("Firm_Details",
					num("Assets_Under_Management"), num("Number_of_Investment_Professionals"), num("Year_Founded")),
			),
			keyValue("Fund_Investment_Vehicle_Financial_Position", "Fund Investment Vehicle Financial Position",
				group("Commitment_Summary",
					num("Total_Commitment"), num("Paid_In_Capital"), num("Remaining_Commitment")),
				group("Capital_Account",
					num("Total_Contributions"), num("Total_Distributions"), num("Invested_Capital"),
					num("Realized_Proceeds"), num("Residual_Market_Value"), num("Total_Value")),
				group("Performance_Metrics",
					num("NAV_Gross"), num("NAV_Net"), num("Gross_IRR"), num("Net_IRR"),
					num("TVPI"), num("DPI"), num("RVPI")),
			),
			tabular("LP_Investor_Cashflows", "LP Investor Cashflows",
				str("Transaction_Date"), str("Investor_Name"), str("Transaction_Type"),
				num("Amount"), str("Currency"), str("Description")),
			tabular("Fund_Companies", "Fund Companies",
				key("Company_Name"), str("Industry"), str("Headquarters_Country"), str("Status")),
			tabular("Initial_Investments", "Initial Investments",
				key("Company_Name"), str("Investment_Date"), num("Initial_Investment_Amount"),
				str("Currency"), str("Instrument_Type")),
			tabular("Company_Investment_Positions", "Company Investment Positions",
				key("Company_Name"), num("Committed_Capital"), num("Invested_Capital"), num("Current_Cost"),
				num("Unrealized_Value"), num("Total_Value"), num("Gross_IRR")),
			tabular("Company_Valuation", "Company Valuation",
				key("Company_Name"), str("Valuation_Date"), num("Enterprise_Value"),
				num("Equity_Value"), num("Ownership_Percentage")),
			tabular("Company_Financials", "Company Financials",
				key("Company_Name"), str("Financial_Date"), num("Revenue_LTM"), num("EBITDA_LTM"),
				num("Cash_Balance"), num("Total_Debt")),
			tabular("Investment_History", "Investment History",
				key("Company_Name"), str("Transaction_Date"), str("Transaction_Type"),
				num("Transaction_Amount"), str("Currency")),
			reference("Reference_Values", "Reference Values",
				"Countries", "Currencies", "Industries", "Instrument_Types"),
		},
		SimplifiedSections: []Section{
			keyValue("Fund_and_Investment_Vehicle_Information", "Fund and Investment Vehicle Information",
				group("Fund_Details",
					str("Fund_Name"), str("Fund_Currency"), num("Fund_Size"), num("Total_Commitments")),
			),
			keyValue("Fund_Manager", "Fund Manager",
				group("Management_Company", str("Management_Company_Name")),
			),
			keyValue("Fund_Investment_Vehicle_Financial_Position", "Fund Investment Vehicle Financial Position",
				group("Performance_Metrics", num("NAV_Gross"), num("Gross_IRR"), num("TVPI")),
			),
			tabular("Fund_Companies", "Fund Companies", key("Company_Name"), str("Industry")),
		},
		Guidelines:           privateEquityGuidelines,
		SimplifiedGuidelines: privateEquitySimplifiedGuidelines,
		MarkerKeys:           []string{"Fund_and_Investment_Vehicle_Information", "Fund_Manager", "Fund_Companies"},
		MinDataPoints:        3,
		SynonymTerms: map[string][]string{
			"fund":        {"fund", "vehicle", "investment"},
			"manager":     {"manager", "gp", "general partner"},
			"financial":   {"financial", "position", "nav", "irr"},
			"cashflows":   {"cashflow", "lp", "investor", "transaction"},
			"companies":   {"company", "portfolio"},
			"investments": {"investment", "initial", "commitment"},
			"valuation":   {"valuation", "value"},
			"financials":  {"financial", "revenue", "ebitda"},
			"history":     {"history", "transaction"},
			"reference":   {"reference", "country", "currency"},
		},
	}
}

func portfolioSummary() Template {
	return Template{
		ID:          PortfolioSummary,
		Name:        "Portfolio Summary Template",
		Description: "Executive portfolio and investment summary",
		Version:     "1.2.0",
		Color:       "20C997",
		FileSuffix:  "_Portfolio_Summary",
		Focus:       "Focus on: Executive summary, investment schedule, financial statements, company profiles",
		Sections: []Section{
			keyValue("Executive_Portfolio_Summary", "Executive Portfolio Summary",
				group("General_Partner",
					str("GP_Name"), str("GP_Contact"), str("GP_Email"), str("GP_Phone")),
				group("Portfolio_Overview",
					num("Assets_Under_Management"), num("Number_of_Active_Funds"),
					num("Number_of_Portfolio_Companies"), num("Total_Capital_Invested"), num("Total_Realized_Value")),
				group("Fund_Summary",
					str("Fund_Name"), str("Fund_Currency"), num("Total_Commitments"),
					num("Total_Drawdowns"), num("Remaining_Commitments")),
				group("Performance_Metrics",
					num("Total_Distributions"), num("DPI"), num("RVPI"), num("TVPI"), num("Net_IRR")),
			),
			tabular("Schedule_of_Investments", "Schedule of Investments",
				key("Company_Name"), str("Fund_Name"), str("Reported_Date"), str("Investment_Status"),
				str("Security_Type"), num("Ownership_Percentage"), str("Initial_Investment_Date"),
				num("Fund_Commitment"), num("Total_Invested"), num("Current_Cost"),
				num("Reported_Value"), num("Realized_Proceeds")),
			keyValue("Statement_of_Operations", "Statement of Operations",
				group("Revenue",
					num("Portfolio_Interest_Income"), num("Portfolio_Dividend_Income"),
					num("Other_Interest_Income"), num("Total_Income")),
				group("Expenses",
					num("Management_Fees"), num("Professional_Fees"), num("Other_Expenses"), num("Total_Expenses")),
				group("Net_Results",
					num("Net_Operating_Income"), num("Realized_Gains_Losses"), num("Unrealized_Gains_Losses")),
			),
			keyValue("Statements_of_Cashflows", "Statements of Cashflows",
				group("Operating_Activities",
					num("Purchase_of_Investments"), num("Proceeds_from_Sales"),
					num("Interest_Received"), num("Net_Cash_from_Operations")),
				group("Financing_Activities",
					num("Capital_Contributions"), num("Distributions_to_Investors"), num("Net_Cash_from_Financing")),
				group("Net_Change",
					num("Net_Cash_Increase_Decrease"), num("Beginning_Cash"), num("Ending_Cash")),
			),
			keyValue("PCAP_Statements", "PCAP Statements",
				group("Beginning_Balance", num("Beginning_NAV")),
				group("Cash_Flows", num("Contributions"), num("Distributions")),
				group("Fees_and_Expenses", num("Management_Fees"), num("Other_Expenses")),
				group("Investment_Activity",
					num("Net_Investment_Income"), num("Realized_Gains_Losses"), num("Unrealized_Gains_Losses")),
				group("Ending_Balance", num("Ending_NAV")),
			),
			tabular("Portfolio_Companies_Profile", "Portfolio Companies Profile",
				key("Company_Name"), str("Initial_Investment_Date"), str("Industry"), str("Headquarters"),
				str("Company_Description"), str("Business_Model"), num("Fund_Ownership_Percentage")),
			tabular("Portfolio_Companies_Financials", "Portfolio Companies Financials",
				key("Company_Name"), str("Reporting_Date"), num("Revenue_LTM"), num("EBITDA_LTM"),
				num("Revenue_Growth_YoY"), num("EBITDA_Margin"), num("Enterprise_Value"),
				num("Total_Debt"), num("Cash_Balance")),
			keyValue("FootNotes", "FootNotes",
				group("Fund_Organization", str("Formation_Date"), str("Legal_Structure"), str("Governing_Law")),
				group("Accounting_Policies", str("Valuation_Methodology"), str("Revenue_Recognition")),
				group("Risk_Factors", str("Market_Risks"), str("Liquidity_Risks")),
			),
			reference("Reference_Values", "Reference Values",
				"Industries", "Currencies", "Regions", "Security_Types"),
		},
		SimplifiedSections: []Section{
			keyValue("Executive_Portfolio_Summary", "Executive Portfolio Summary",
				group("Portfolio_Overview",
					num("Assets_Under_Management"), num("Number_of_Portfolio_Companies")),
			),
			tabular("Schedule_of_Investments", "Schedule of Investments",
				key("Company_Name"), num("Total_Invested"), num("Reported_Value")),
		},
		Guidelines:           portfolioSummaryGuidelines,
		SimplifiedGuidelines: portfolioSummarySimplifiedGuidelines,
		MarkerKeys:           []string{"Executive_Portfolio_Summary", "Schedule_of_Investments"},
		MinDataPoints:        3,
		SynonymTerms: map[string][]string{
			"executive":  {"executive", "summary", "overview"},
			"schedule":   {"schedule", "investment"},
			"operations": {"operation", "income", "revenue"},
			"cashflows":  {"cashflow", "cash"},
			"pcap":       {"pcap", "capital", "account"},
			"profile":    {"profile", "company"},
			"financials": {"financial", "revenue", "ebitda"},
			"footnotes":  {"footnote", "note", "disclosure"},
			"reference":  {"reference", "country", "currency"},
		},
	}
}
