package model

import "time"

// LifetimeExpiry is the far-future sentinel stored for lifetime mobile
// entitlements.
var LifetimeExpiry = time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC)

// WebStatusActive reports whether a provider subscription status grants
// paid access. Trialing subscriptions count as active.
func WebStatusActive(status string) bool {
	return status == "active" || status == "trialing"
}

// ComputeEntitlement merges the web and mobile entitlement sources into
// the effective subscription state. Paid from either source wins; the
// expiry is the later of the two. Free tier carries the client cap,
// paid tier is uncapped.
func ComputeEntitlement(webStatus string, webPeriodEnd *time.Time, mobileActive bool, mobileExpiresAt *time.Time) (tier string, clientLimit *int64, expiresAt *time.Time) {
	webActive := WebStatusActive(webStatus)
	if !webActive && !mobileActive {
		limit := int64(FreeClientLimit)
		return TierFree, &limit, nil
	}

	if webActive {
		expiresAt = webPeriodEnd
	}
	if mobileActive && mobileExpiresAt != nil {
		if expiresAt == nil || mobileExpiresAt.After(*expiresAt) {
			expiresAt = mobileExpiresAt
		}
	}
	return TierPaid, nil, expiresAt
}
