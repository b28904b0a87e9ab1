package models

import (
	"encoding/json"
	"strings"
)

// Closed option sets for trust report fields. Values outside these sets are
// dropped during parsing rather than stored.
var (
	NameMatchOptions      = []string{"Match", "Partial Match", "Mismatch"}
	PhoneAgeOptions       = []string{"<1 year", "1-3 years", "3-5 years", "5+ years"}
	BvnNinOptions         = []string{"Verified (no mismatch)", "Verified (mismatch)", "Not verified", "Not provided"}
	UtilityBillOptions    = []string{"Provided", "Not provided"}
	ActivityOptions       = []string{"Active", "Inactive", "Not applicable"}
	AssociationOptions    = []string{"Registered member", "Not member"}
	ReferenceOptions      = []string{"Confirmed", "Not confirmed", "Unable to reach", "Not provided"}
	FraudSignalOptions    = []string{"None", "Reported", "Suspected"}
	ConflictSignalOptions = []string{"None", "Present"}
)

// TrustReportContent is the structured payload behind an individual's trust
// report. Sections are optional; absent sections render empty rather than
// null so consumers never branch on presence.
type TrustReportContent struct {
	Identity         TrustReportIdentity `json:"identity"`
	Address          TrustReportAddress  `json:"address"`
	EconomicActivity TrustReportActivity `json:"economic_activity"`
	References       []TrustReportRef    `json:"references"`
	RiskSignals      TrustReportSignals  `json:"risk_signals"`
}

type TrustReportIdentity struct {
	NameMatch    string `json:"name_match,omitempty"`
	PhoneAge     string `json:"phone_age,omitempty"`
	BvnNinStatus string `json:"bvn_nin_status,omitempty"`
}

type TrustReportAddress struct {
	VerificationNote  string `json:"verification_note,omitempty"`
	ResidenceDuration string `json:"residence_duration,omitempty"`
	UtilityBill       string `json:"utility_bill,omitempty"`
}

type TrustReportActivity struct {
	Status                string `json:"status,omitempty"`
	Duration              string `json:"duration,omitempty"`
	InflowRange           string `json:"inflow_range,omitempty"`
	AssociationMembership string `json:"association_membership,omitempty"`
}

type TrustReportRef struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type TrustReportSignals struct {
	Fraud                     string `json:"fraud,omitempty"`
	ConflictingRefsOrIdentity string `json:"conflicting_refs_or_identity,omitempty"`
}

// ParseTrustReportContent normalizes raw JSON into a valid report. Unknown
// enum values and malformed references are dropped, free-text fields are
// trimmed. Nil or unparseable input yields an empty report, never an error:
// report content is admin-curated and a bad byte should not break reads.
func ParseTrustReportContent(raw []byte) TrustReportContent {
	var in TrustReportContent
	if len(raw) == 0 || json.Unmarshal(raw, &in) != nil {
		return TrustReportContent{References: []TrustReportRef{}}
	}

	out := TrustReportContent{
		Identity: TrustReportIdentity{
			NameMatch:    oneOf(in.Identity.NameMatch, NameMatchOptions),
			PhoneAge:     oneOf(in.Identity.PhoneAge, PhoneAgeOptions),
			BvnNinStatus: oneOf(in.Identity.BvnNinStatus, BvnNinOptions),
		},
		Address: TrustReportAddress{
			VerificationNote:  strings.TrimSpace(in.Address.VerificationNote),
			ResidenceDuration: strings.TrimSpace(in.Address.ResidenceDuration),
			UtilityBill:       oneOf(in.Address.UtilityBill, UtilityBillOptions),
		},
		EconomicActivity: TrustReportActivity{
			Status:                oneOf(in.EconomicActivity.Status, ActivityOptions),
			Duration:              strings.TrimSpace(in.EconomicActivity.Duration),
			InflowRange:           strings.TrimSpace(in.EconomicActivity.InflowRange),
			AssociationMembership: oneOf(in.EconomicActivity.AssociationMembership, AssociationOptions),
		},
		References: []TrustReportRef{},
		RiskSignals: TrustReportSignals{
			Fraud:                     oneOf(in.RiskSignals.Fraud, FraudSignalOptions),
			ConflictingRefsOrIdentity: oneOf(in.RiskSignals.ConflictingRefsOrIdentity, ConflictSignalOptions),
		},
	}
	for _, ref := range in.References {
		if ref.Type == "" || oneOf(ref.Status, ReferenceOptions) == "" {
			continue
		}
		out.References = append(out.References, ref)
	}
	return out
}

func oneOf(value string, options []string) string {
	for _, opt := range options {
		if value == opt {
			return value
		}
	}
	return ""
}
