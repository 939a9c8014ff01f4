package pricing

import (
	"time"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// basePrices is the hourly base price table per resource type and tier.
var basePrices = map[domain.ResourceType]map[domain.PriceTier]float64{
	domain.ResourceIndoor: {
		domain.TierPeak: 100,
		domain.TierMid:  80,
		domain.TierOff:  60,
	},
	domain.ResourceOutdoor: {
		domain.TierPeak: 80,
		domain.TierMid:  60,
		domain.TierOff:  40,
	},
}

// tierSchedule defines the daily tier windows, bounds inclusive.
var tierSchedule = struct {
	peakWeekday []TimeRange
	peakWeekend []TimeRange
	midWeekday  []TimeRange
	midWeekend  []TimeRange
}{
	peakWeekday: []TimeRange{{Start: "18:00", End: "22:00"}},
	peakWeekend: []TimeRange{{Start: "10:00", End: "22:00"}},
	midWeekday:  []TimeRange{{Start: "16:00", End: "18:00"}},
	midWeekend:  []TimeRange{{Start: "08:00", End: "10:00"}},
}

// TierFor returns the price tier the given moment falls into.
func TierFor(t time.Time) domain.PriceTier {
	clock := t.Format("15:04")
	weekend := t.Weekday() == time.Saturday || t.Weekday() == time.Sunday

	peak, mid := tierSchedule.peakWeekday, tierSchedule.midWeekday
	if weekend {
		peak, mid = tierSchedule.peakWeekend, tierSchedule.midWeekend
	}

	for _, w := range peak {
		if clock >= w.Start && clock <= w.End {
			return domain.TierPeak
		}
	}
	for _, w := range mid {
		if clock >= w.Start && clock <= w.End {
			return domain.TierMid
		}
	}
	return domain.TierOff
}

// BasePrice returns the hourly base price for a resource type and tier.
// Unknown types fall back to the indoor table, and the social tier is
// charged at the off-peak price.
func BasePrice(rt domain.ResourceType, tier domain.PriceTier) float64 {
	table, ok := basePrices[rt]
	if !ok {
		table = basePrices[domain.ResourceIndoor]
	}
	if price, ok := table[tier]; ok {
		return price
	}
	return table[domain.TierOff]
}

// AdditionalPlayerFee is the flat surcharge for each player beyond two.
const AdditionalPlayerFee = 10.0

// PlayerSurcharge returns the total additional-player fee for a booking.
func PlayerSurcharge(playerCount int) float64 {
	if playerCount <= 2 {
		return 0
	}
	return float64(playerCount-2) * AdditionalPlayerFee
}
