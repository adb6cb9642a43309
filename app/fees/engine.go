package fees

import (
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-creator-billing/app/entity"
	"github.com/vibast-solutions/ms-go-creator-billing/config"
)

var (
	ErrUnknownModel  = errors.New("unknown fee model")
	ErrUnknownMode   = errors.New("unknown fee mode")
	ErrInvalidAmount = errors.New("amount must be > 0")
)

const (
	ClassStandard = "standard"
	ClassPartner  = "partner"
)

// Historical legacy rates by creator classification. These are frozen: every
// live legacy subscription was created under them and keeps them forever.
const (
	legacyStandardRateBps int32 = 1000
	legacyPartnerRateBps  int32 = 800
)

// Progressive tiers, retained only for rows created under that model.
// The bracket matching the gross amount supplies the whole rate.
var progressiveTiers = []struct {
	UpToCents int64
	RateBps   int32
}{
	{UpToCents: 999, RateBps: 1500},
	{UpToCents: 9999, RateBps: 1000},
	{UpToCents: 0, RateBps: 800}, // open-ended top bracket
}

// Policy holds the rate table the engine computes with. A subscription's
// policy is resolved once at creation and persisted on the row; renewals are
// quoted against the persisted model and mode, never against live config.
type Policy struct {
	SplitTotalRateBps    int32
	CrossBorderBufferBps int32
	FlatRateBps          int32
	PlatformCountry      string
	MinFeeCents          int64
	DefaultModel         string
	DefaultMode          string
}

func NewPolicy(cfg config.FeesConfig) Policy {
	return Policy{
		SplitTotalRateBps:    cfg.SplitTotalRateBps,
		CrossBorderBufferBps: cfg.CrossBorderBufferBps,
		FlatRateBps:          cfg.FlatRateBps,
		PlatformCountry:      strings.ToUpper(strings.TrimSpace(cfg.PlatformCountry)),
		MinFeeCents:          cfg.MinFeeCents,
		DefaultModel:         cfg.DefaultModel,
		DefaultMode:          cfg.DefaultMode,
	}
}

// Input describes one charge to quote. AmountCents is always the amount the
// payer was actually charged (the gross), including any payer-side surcharge
// collected at checkout.
type Input struct {
	AmountCents    int64
	Currency       string
	CreatorClass   string
	FeeMode        string
	Model          string
	CreatorCountry string
}

// Breakdown is the resolved gross/fee/net split for one charge.
//
// BasePriceCents is the creator's nominal set price implied by the quote; the
// subscription stores it at creation and reuses it verbatim on renewals.
type Breakdown struct {
	GrossCents     int64
	FeeCents       int64
	NetCents       int64
	BasePriceCents int64

	SubscriberFeeCents *int64
	CreatorFeeCents    *int64

	EffectiveRateBps int32
	WasCapped        bool
}

// Quote resolves the fee split for a charge. Pure: no I/O, no clock, no
// global state.
func (p Policy) Quote(in Input) (Breakdown, error) {
	if in.AmountCents <= 0 {
		return Breakdown{}, ErrInvalidAmount
	}

	switch in.Model {
	case entity.FeeModelLegacy:
		return p.quoteLegacy(in), nil
	case entity.FeeModelFlat:
		return p.quoteFlat(in)
	case entity.FeeModelProgressive:
		return p.quoteProgressive(in), nil
	case entity.FeeModelSplit:
		return p.quoteSplit(in), nil
	default:
		return Breakdown{}, ErrUnknownModel
	}
}

func (p Policy) quoteLegacy(in Input) Breakdown {
	rate := legacyStandardRateBps
	if in.CreatorClass == ClassPartner {
		rate = legacyPartnerRateBps
	}

	fee := rateOf(in.AmountCents, rate)
	fee, capped := p.applyMinimum(fee)

	return Breakdown{
		GrossCents:       in.AmountCents,
		FeeCents:         fee,
		NetCents:         in.AmountCents - fee,
		BasePriceCents:   in.AmountCents,
		EffectiveRateBps: effectiveRate(fee, in.AmountCents),
		WasCapped:        capped,
	}
}

func (p Policy) quoteFlat(in Input) (Breakdown, error) {
	switch in.FeeMode {
	case entity.FeeModeAbsorb:
		fee := rateOf(in.AmountCents, p.FlatRateBps)
		fee, capped := p.applyMinimum(fee)
		return Breakdown{
			GrossCents:       in.AmountCents,
			FeeCents:         fee,
			NetCents:         in.AmountCents - fee,
			BasePriceCents:   in.AmountCents,
			EffectiveRateBps: effectiveRate(fee, in.AmountCents),
			WasCapped:        capped,
		}, nil
	case entity.FeeModePassToSubscriber:
		// The creator's set price equals net; the charge was grossed up at
		// checkout, so the fee is carved back out of the gross.
		base := roundHalfUp(in.AmountCents*10000, 10000+int64(p.FlatRateBps))
		fee := in.AmountCents - base
		fee, capped := p.applyMinimum(fee)
		net := in.AmountCents - fee
		return Breakdown{
			GrossCents:       in.AmountCents,
			FeeCents:         fee,
			NetCents:         net,
			BasePriceCents:   net,
			EffectiveRateBps: effectiveRate(fee, in.AmountCents),
			WasCapped:        capped,
		}, nil
	default:
		return Breakdown{}, ErrUnknownMode
	}
}

func (p Policy) quoteProgressive(in Input) Breakdown {
	rate := progressiveTiers[len(progressiveTiers)-1].RateBps
	for _, tier := range progressiveTiers {
		if tier.UpToCents > 0 && in.AmountCents <= tier.UpToCents {
			rate = tier.RateBps
			break
		}
	}

	fee := rateOf(in.AmountCents, rate)
	fee, capped := p.applyMinimum(fee)

	return Breakdown{
		GrossCents:       in.AmountCents,
		FeeCents:         fee,
		NetCents:         in.AmountCents - fee,
		BasePriceCents:   in.AmountCents,
		EffectiveRateBps: effectiveRate(fee, in.AmountCents),
		WasCapped:        capped,
	}
}

func (p Policy) quoteSplit(in Input) Breakdown {
	totalRate := p.SplitTotalRateBps
	if p.crossBorder(in.CreatorCountry) {
		totalRate += p.CrossBorderBufferBps
	}

	total := rateOf(in.AmountCents, totalRate)
	total, capped := p.applyMinimum(total)

	// Rounding rule: payer share rounds down, creator share takes the
	// remainder. The payer-side share is already inside the gross charge,
	// so only the creator-side share reduces the payout.
	subscriberFee := total / 2
	creatorFee := total - subscriberFee

	return Breakdown{
		GrossCents:         in.AmountCents,
		FeeCents:           total,
		NetCents:           in.AmountCents - creatorFee,
		BasePriceCents:     in.AmountCents - subscriberFee,
		SubscriberFeeCents: &subscriberFee,
		CreatorFeeCents:    &creatorFee,
		EffectiveRateBps:   effectiveRate(total, in.AmountCents),
		WasCapped:          capped,
	}
}

func (p Policy) crossBorder(creatorCountry string) bool {
	country := strings.ToUpper(strings.TrimSpace(creatorCountry))
	return country != "" && p.PlatformCountry != "" && country != p.PlatformCountry
}

func (p Policy) applyMinimum(fee int64) (int64, bool) {
	if p.MinFeeCents > 0 && fee < p.MinFeeCents {
		return p.MinFeeCents, true
	}
	return fee, false
}

func rateOf(amountCents int64, rateBps int32) int64 {
	return roundHalfUp(amountCents*int64(rateBps), 10000)
}

func effectiveRate(feeCents, grossCents int64) int32 {
	if grossCents <= 0 {
		return 0
	}
	return int32(roundHalfUp(feeCents*10000, grossCents))
}

func roundHalfUp(numerator, denominator int64) int64 {
	return (numerator + denominator/2) / denominator
}
