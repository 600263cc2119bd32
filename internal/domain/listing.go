package domain

import (
	"math"
	"strings"
	"time"
)

// Source identifies one external site the pipeline talks to. Keeping this a
// closed set of constants means adding a shop forces a pass over every switch
// that dispatches on it.
type Source string

const (
	SourceOkkazeo    Source = "okkazeo"
	SourcePhilibert  Source = "philibert"
	SourceAgorajeux  Source = "agorajeux"
	SourceUltrajeux  Source = "ultrajeux"
	SourceLudocortex Source = "ludocortex"
	SourceBGG        Source = "bgg"
	SourceTricTrac   Source = "trictrac"
)

// PriceSources lists every shop consulted for references.
func PriceSources() []Source {
	return []Source{SourcePhilibert, SourceAgorajeux, SourceUltrajeux, SourceLudocortex}
}

// ReviewSources lists every rating site consulted for reviewers.
func ReviewSources() []Source {
	return []Source{SourceBGG, SourceTricTrac}
}

// ListingStub is one entry of the marketplace feed: enough to decide whether
// the listing is new or just a price/timestamp bump.
type ListingStub struct {
	ID      int64
	Title   string
	Price   float64
	URL     string
	Updated time.Time
}

type Seller struct {
	Name          string
	URL           string
	AnnounceCount int
	IsPro         bool
}

// Reference is one shop's price quote for a listing. At most one per source.
type Reference struct {
	Source Source
	Price  float64
	URL    string
}

// Reviewer is one rating site's note for a listing.
type Reviewer struct {
	Source Source
	Note   float64
	Count  int
	URL    string
}

// Review aggregates all reviewers of a listing.
type Review struct {
	Reviewers   map[Source]Reviewer
	AverageNote float64
}

// Deal is the economy of the listing against the cheapest known price.
// The zero value means "no deal", which is distinct from a computed 0%:
// a computed break-even also collapses to the zero value on purpose.
type Deal struct {
	Price      int
	Percentage int
}

// Shipping holds the offered shipping methods and their price, plus whether
// the seller accepts hand delivery.
type Shipping struct {
	Methods      map[string]float64
	HandDelivery bool
}

// Listing is one marketplace announce with everything enrichment attached.
type Listing struct {
	ID           int64
	Name         string
	Price        float64
	URL          string
	Extension    string
	Barcode      *int64
	City         *string
	LastModified time.Time
	Seller       Seller
	Shipping     Shipping
	References   map[Source]Reference
	Review       Review
	Deal         Deal
}

// ComputeDeal recomputes the deal from the current reference set. The
// listing's own price participates in the minimum, so a listing that is
// already the cheapest option yields the no-deal zero value.
func (l *Listing) ComputeDeal() {
	if len(l.References) == 0 {
		l.Deal = Deal{}
		return
	}

	minPrice := l.Price
	for _, ref := range l.References {
		if ref.Price < minPrice {
			minPrice = ref.Price
		}
	}

	if minPrice <= 0 {
		l.Deal = Deal{}
		return
	}

	economy := int(math.Round(l.Price - minPrice))
	percent := int(math.Round(l.Price*100/minPrice)) - 100

	if economy == 0 || percent == 0 {
		l.Deal = Deal{}
		return
	}

	l.Deal = Deal{Price: economy, Percentage: percent}
}

// HasDeal reports whether a deal was computed for this listing.
func (l *Listing) HasDeal() bool {
	return l.Deal != Deal{}
}

// ComputeAverageNote recomputes the count-weighted mean note. Reviewers with
// a zero sample count carry no evidence and are excluded; with no counted
// review at all the average stays 0.
func (r *Review) ComputeAverageNote() {
	var sum float64
	var count int
	for _, rev := range r.Reviewers {
		if rev.Count == 0 {
			continue
		}
		sum += rev.Note * float64(rev.Count)
		count += rev.Count
	}

	if count == 0 {
		r.AverageNote = 0
		return
	}
	r.AverageNote = sum / float64(count)
}

// CleanName strips parenthetical annotations from a listing title, e.g.
// "Foo - Base (VF)" keeps "Foo - Base ".
func CleanName(name string) string {
	var b strings.Builder
	depth := 0
	for _, c := range name {
		switch {
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}
