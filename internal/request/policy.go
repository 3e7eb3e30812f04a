package request

import "fmt"

type MissingApproverPolicy string

const (
	// MissingApproverReject refuses creation when no enabled approver is configured.
	MissingApproverReject MissingApproverPolicy = "reject"
	// MissingApproverFallbackAdmin assigns the first enabled administrator.
	MissingApproverFallbackAdmin MissingApproverPolicy = "fallback_admin"
	// MissingApproverAllow stores the request without an approver. Nobody can approve or reject it.
	MissingApproverAllow MissingApproverPolicy = "allow"
)

type Policy struct {
	MissingApprover MissingApproverPolicy
}

func DefaultPolicy() Policy {
	return Policy{MissingApprover: MissingApproverReject}
}

func ParseMissingApproverPolicy(raw string) (MissingApproverPolicy, error) {
	switch p := MissingApproverPolicy(raw); p {
	case MissingApproverReject, MissingApproverFallbackAdmin, MissingApproverAllow:
		return p, nil
	case "":
		return MissingApproverReject, nil
	default:
		return "", fmt.Errorf("unknown missing approver policy %q", raw)
	}
}
