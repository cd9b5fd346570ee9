package config

// sensitiveSites groups domains whose pages are kept out of the indexes and
// samples by default. A listed domain also covers its subdomains.
var sensitiveSites = []struct {
	category string
	domains  []string
}{
	{"banking and financial", []string{
		"chase.com", "bankofamerica.com", "wellsfargo.com", "citi.com",
		"usbank.com", "capitalone.com", "ally.com", "schwab.com",
		"fidelity.com", "vanguard.com", "tdameritrade.com", "etrade.com",
		"robinhood.com", "paypal.com", "venmo.com", "zelle.com",
		"mint.com", "personalcapital.com",
	}},
	{"credit unions and regional", []string{
		"navyfederal.org", "pnc.com", "regions.com", "suntrust.com",
		"bbt.com", "truist.com",
	}},
	{"password managers", []string{
		"1password.com", "lastpass.com", "bitwarden.com", "dashlane.com",
		"keepersecurity.com", "nordpass.com",
	}},
	{"authentication and identity", []string{
		"accounts.google.com", "login.microsoftonline.com", "login.live.com", "auth0.com",
		"okta.com", "onelogin.com", "duo.com",
	}},
	{"healthcare and medical", []string{
		"mychart.com", "mychartsso.com", "patient.myhealth.com", "portal.anthem.com",
		"member.cigna.com", "member.aetna.com", "member.uhc.com", "kp.org",
		"healthcare.gov", "medicare.gov",
	}},
	{"government and tax", []string{
		"irs.gov", "ssa.gov", "login.gov", "id.me",
		"turbotax.intuit.com", "hrblock.com",
	}},
	{"insurance", []string{
		"geico.com", "progressive.com", "statefarm.com", "allstate.com",
		"usaa.com",
	}},
	{"crypto and trading", []string{
		"coinbase.com", "binance.com", "kraken.com", "gemini.com",
	}},
	{"hr and payroll", []string{
		"workday.com", "adp.com", "gusto.com", "paychex.com",
	}},
}

// DefaultExcludeDomains flattens sensitiveSites in category order.
func DefaultExcludeDomains() []string {
	var out []string
	for _, s := range sensitiveSites {
		out = append(out, s.domains...)
	}
	return out
}
