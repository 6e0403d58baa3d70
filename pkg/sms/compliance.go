package sms

import "strings"

// promotionalKeywords may not appear in transactional messages. Matching is a
// case-insensitive substring search.
var promotionalKeywords = []string{
	"sale",
	"% off",
	"coupon",
	"buy now",
	"flash sale",
	"save $",
	"discount",
	"promo code",
	"limited time offer",
	"free shipping",
	"clearance",
	"shop now",
	"order now",
	"act now",
	"exclusive offer",
	"special offer",
	"deal of the day",
	"bogo",
}

// DetectPromotionalKeywords returns the blocklisted phrases found in body, in blocklist order.
func DetectPromotionalKeywords(body string) []string {
	lower := strings.ToLower(body)
	var found []string
	for _, keyword := range promotionalKeywords {
		if strings.Contains(lower, keyword) {
			found = append(found, keyword)
		}
	}
	return found
}
