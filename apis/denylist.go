// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package apis

// These tables track upstream restrictions that are not discoverable
// through the describe endpoints. They drift with Zuora releases, so they
// live here as plain data with their own tests rather than as scattered
// constants.

// doesNotSupportDeleted lists objects whose AQuA exports reject the
// deleted-column declaration. See the AQuA "Export Deleted Data"
// documentation.
var doesNotSupportDeleted = map[string]bool{
	"AccountingPeriod":                      true,
	"ContactSnapshot":                       true,
	"DiscountAppliedMetrics":                true,
	"PaymentGatewayReconciliationEventLog":  true,
	"PaymentTransactionLog":                 true,
	"PaymentMethodTransactionLog":           true,
	"PaymentReconciliationJob":              true,
	"PaymentReconciliationLog":              true,
	"ProcessedUsage":                        true,
	"RefundTransactionLog":                  true,
	"UpdaterBatch":                          true,
	"UpdaterDetail":                         true,
	"BookingTransaction":                    true,
	"CalloutHistory":                        true,
	"SmartPreventionAudit":                  true,
	"HpmCaptchaValidationResult":            true,
	"EmailHistory":                          true,
}

// SupportsDeleted reports whether an object may carry the deleted-column
// declaration on AQuA exports.
func SupportsDeleted(object string) bool {
	return !doesNotSupportDeleted[object]
}

// unsupportedFieldsForRest lists per-object fields the synchronous REST
// export cannot select even though describe advertises them.
var unsupportedFieldsForRest = map[string][]string{
	"Account": {"SequenceSetId"},
	"Amendment": {
		"BookingDate",
		"EffectivePolicy",
		"NewRatePlanId",
		"RemovedRatePlanId",
		"SubType",
	},
	"BillingRun": {"BillingRunType", "NumberOfCreditMemos", "PostedDate"},
	"Export":     {"Encoding"},
	"Invoice":    {"PaymentTerm", "SourceType", "TaxMessage", "TaxStatus", "TemplateId"},
	"InvoiceItem": {
		"Balance",
		"ExcludeItemBillingFromRevenueAccounting",
	},
	"InvoiceItemAdjustment": {"ExcludeItemBillingFromRevenueAccounting"},
	"PaymentMethod":         {"StoredCredentialProfileId"},
	"ProductRatePlanCharge": {
		"ExcludeItemBillingFromRevenueAccounting",
		"ExcludeItemBookingFromRevenueAccounting",
	},
	"RatePlanCharge": {
		"AmendedByOrderOn",
		"CreditOption",
		"DrawdownRate",
		"DrawdownUom",
		"ExcludeItemBillingFromRevenueAccounting",
		"ExcludeItemBookingFromRevenueAccounting",
		"IsPrepaid",
		"OriginalOrderDate",
		"PaymentTermSnapshot",
		"PrepaidOperationType",
		"PrepaidQuantity",
		"PrepaidTotalQuantity",
		"PrepaidUom",
		"ValidityPeriodType",
	},
	"Subscription": {"IsLatestVersion", "LastBookingDate", "PaymentTerm", "Revision"},
	"TaxationItem": {"Balance", "CreditAmount", "PaymentAmount"},
	"Usage":        {"ImportId"},
}

// FieldUnsupportedForRest reports whether the REST export cannot select
// the given field of the given object.
func FieldUnsupportedForRest(object, field string) bool {
	for _, name := range unsupportedFieldsForRest[object] {
		if name == field {
			return true
		}
	}
	return false
}

// unsupportedRelatedObjects lists related objects that cannot be joined in
// export queries.
var unsupportedRelatedObjects = map[string]bool{
	"SubscriptionStatusHistory": true,
}

// RelatedObjectSupported reports whether a related object can contribute a
// joined <Parent>.Id column.
func RelatedObjectSupported(object string) bool {
	return !unsupportedRelatedObjects[object]
}
