package inventory

import (
	"fmt"
	"strings"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

const lakh = 100_000

// FormatPrice renders a price band in lakhs, e.g. "₹4.5L - ₹5.0L".
func FormatPrice(priceMin, priceMax float64) string {
	if priceMax <= 0 || priceMin == priceMax {
		return formatLakh(priceMin)
	}
	if priceMin <= 0 {
		return formatLakh(priceMax)
	}
	return formatLakh(priceMin) + " - " + formatLakh(priceMax)
}

func formatLakh(v float64) string {
	return fmt.Sprintf("₹%.1fL", v/lakh)
}

// FormatListing renders up to MaxResults properties as the outbound message.
func FormatListing(name string, props []contractx.Property) string {
	if len(props) > MaxResults {
		props = props[:MaxResults]
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Great news, %s! ", name)
	} else {
		b.WriteString("Great news! ")
	}
	if len(props) == 1 {
		b.WriteString("I found a property that matches your requirements:\n")
	} else {
		fmt.Fprintf(&b, "I found %d properties that match your requirements:\n", len(props))
	}

	for i, p := range props {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, p.Title)
		if loc := joinNonEmpty(", ", p.Locality, p.City); loc != "" {
			fmt.Fprintf(&b, "   📍 %s\n", loc)
		}
		fmt.Fprintf(&b, "   💰 %s\n", FormatPrice(p.PriceMin, p.PriceMax))

		var details []string
		if p.BHKType != "" {
			details = append(details, p.BHKType)
		}
		if p.PropertyType != "" {
			details = append(details, p.PropertyType)
		}
		if p.AreaSqft > 0 {
			details = append(details, fmt.Sprintf("%.0f sqft", p.AreaSqft))
		}
		if len(details) > 0 {
			fmt.Fprintf(&b, "   🏠 %s\n", strings.Join(details, " · "))
		}
	}

	b.WriteString("\nWould you like to schedule a site visit for any of these?")
	return b.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return strings.Join(out, sep)
}
