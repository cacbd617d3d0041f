package template

const privateEquityGuidelines = `EXTRACT PRIVATE EQUITY FUND DATA - TEMPLATE 1:

This is a comprehensive private equity fund template. Extract:

1. FUND AND INVESTMENT VEHICLE INFORMATION:
   - Fund name, legal structure, domicile, currency
   - Fund size, total commitments, vintage year
   - Key dates: inception, closing, investment period end
   - Fee structure: management fee %, carried interest %, hurdle rate
   - Investment focus: geography, sector, stage

2. FUND MANAGER:
   - Management company name and contact details
   - Office address, website, primary contact
   - AUM, number of professionals, year founded

3. FINANCIAL POSITION:
   - Commitment summary: total, paid-in, remaining
   - Capital account: contributions, distributions, invested capital
   - Performance: NAV (gross/net), IRR (gross/net), TVPI, DPI, RVPI
   - Realized proceeds and residual market value

4. LP INVESTOR CASHFLOWS:
   - All transactions with investors: contributions, distributions
   - Dates, investor names, amounts, currencies
   - Transaction types and descriptions

5. PORTFOLIO COMPANIES:
   - All fund companies with industry and headquarters
   - Company status (active, realized, etc.)
   - Initial investment details: dates, amounts, instrument types
   - Current investment positions: committed, invested, current cost
   - Company valuations: enterprise value, equity value, ownership %

6. COMPANY FINANCIALS:
   - Recent financial data: revenue LTM, EBITDA LTM
   - Balance sheet items: cash, total debt

7. INVESTMENT HISTORY:
   - Complete transaction history with companies, including follow-ons and exits

8. REFERENCE VALUES:
   - Lists of countries, currencies, industries, instrument types

RULES:
- Extract ONLY explicit data from the document
- Use null for missing data (never invent data)
- Format dates as YYYY-MM-DD
- Convert percentages to decimals (15% = 0.15)
- Include ALL portfolio companies mentioned`

const privateEquitySimplifiedGuidelines = `Extract key private equity fund data:
- Fund name, currency, size, commitments
- Management company name
- Performance metrics: NAV, IRR, TVPI
- Portfolio companies with names and industries
Use null for missing data. Return valid JSON.`

const portfolioSummaryGuidelines = `EXTRACT PORTFOLIO SUMMARY DATA - TEMPLATE 2:

This is an executive portfolio summary template. Extract:

1. EXECUTIVE PORTFOLIO SUMMARY:
   - General Partner name and contact information
   - Portfolio overview: AUM, number of funds, portfolio companies
   - Fund summary: name, currency, commitments, drawdowns
   - Performance metrics: distributions, DPI, RVPI, TVPI, Net IRR

2. SCHEDULE OF INVESTMENTS:
   - Every investment with company name, fund name, reported date
   - Investment status, security type, ownership percentage
   - Commitment, total invested, current cost, reported value, realized proceeds

3. FINANCIAL STATEMENTS:
   - Statement of operations: income, expenses, net results
   - Statements of cashflows: operating, financing, net change

4. PCAP STATEMENTS (Partnership Capital Account):
   - Beginning and ending NAV, contributions and distributions
   - Fees and expenses, investment activity

5. PORTFOLIO COMPANIES:
   - Profiles: description, business model, headquarters
   - Financials: revenue, EBITDA, growth, margins, enterprise value, debt, cash

6. FOOTNOTES:
   - Fund organization, accounting policies, risk factors

7. REFERENCE VALUES:
   - Industries, currencies, regions, security types

RULES:
- Extract ONLY explicit data from the document
- Use null for missing data (never invent data)
- Format dates as YYYY-MM-DD
- Convert percentages to decimals (15% = 0.15)
- The schedule of investments should be comprehensive`

const portfolioSummarySimplifiedGuidelines = `Extract key portfolio summary data:
- Assets under management, portfolio company count
- Investment schedule with company names and values
Use null for missing data. Return valid JSON.`
