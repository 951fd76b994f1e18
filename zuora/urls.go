// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package zuora

// Zuora operates separate data centers per region and environment, and a
// tenant's credentials only work against one of them. CandidateURLs lists
// every base URL that could serve a tenant with the given configuration,
// in probe order.
func CandidateURLs(sandbox, european bool) []string {
	switch {
	case !sandbox && !european:
		return []string{
			"https://rest.na.zuora.com/",
			"https://rest.zuora.com/",
		}
	case sandbox && !european:
		return []string{
			"https://rest.sandbox.na.zuora.com/",
			"https://rest.apisandbox.zuora.com/",
		}
	case !sandbox && european:
		return []string{"https://rest.eu.zuora.com/"}
	default:
		return []string{"https://rest.sandbox.eu.zuora.com/"}
	}
}
