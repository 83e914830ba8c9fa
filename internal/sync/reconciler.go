// Cardographus - Trading Card Catalog and Pricing Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cardographus

/*
reconciler.go - Upstream Page Reconciliation

This file contains the BatchReconciler, which turns decoded upstream
pages into database state:

  - Boundary validation: malformed upstream records are quarantined
    (skipped and counted) without aborting the page
  - Mapping: decimal dollars to integer cents (round half up), variant
    keys normalized to lowercase with underscores
  - Sub-batched writes: pages are written in transactions of at most
    subBatchSize rows so one poisoned row cannot sink a whole page
  - Price change fan-out: every detected change is published on the
    event bus after its history row committed

fetchAllPages is the shared offset-pagination driver: it runs a guard
before every page (budget, cancellation, quota, shutdown checks live
there) and keeps fetching while the upstream reports more data.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/tomtom215/cardographus/internal/database"
	"github.com/tomtom215/cardographus/internal/events"
	"github.com/tomtom215/cardographus/internal/logging"
	"github.com/tomtom215/cardographus/internal/metrics"
	"github.com/tomtom215/cardographus/internal/models"
	"github.com/tomtom215/cardographus/internal/models/justtcg"
)

// defaultSubBatchSize bounds rows per database transaction when the
// configured value is missing.
const defaultSubBatchSize = 50

// PageResult aggregates the outcome of reconciling one upstream page.
type PageResult struct {
	CardsProcessed   int
	VariantsUpserted int
	PriceChanges     int
	Errors           int
}

// add accumulates another result into this one.
func (r *PageResult) add(other *PageResult) {
	r.CardsProcessed += other.CardsProcessed
	r.VariantsUpserted += other.VariantsUpserted
	r.PriceChanges += other.PriceChanges
	r.Errors += other.Errors
}

// BatchReconciler writes upstream catalog pages to the database and
// publishes the resulting price change events.
type BatchReconciler struct {
	db           DBInterface
	publisher    events.Publisher
	subBatchSize int
}

// NewBatchReconciler creates a reconciler. publisher may be nil, in
// which case price changes are recorded but not published.
func NewBatchReconciler(db DBInterface, publisher events.Publisher, subBatchSize int) *BatchReconciler {
	if subBatchSize < 1 {
		subBatchSize = defaultSubBatchSize
	}
	return &BatchReconciler{
		db:           db,
		publisher:    publisher,
		subBatchSize: subBatchSize,
	}
}

// ReconcileGames upserts the upstream games listing. Malformed records
// are quarantined; write failures are counted per record.
func (r *BatchReconciler) ReconcileGames(ctx context.Context, games []justtcg.Game) *PageResult {
	result := &PageResult{}
	for i := range games {
		dto := &games[i]
		if err := dto.Validate(); err != nil {
			result.Errors++
			logging.Warn().Err(err).Msg("Quarantined malformed game record")
			continue
		}

		game := &models.Game{
			Name:       dto.Name,
			Slug:       dto.Slug,
			ExternalID: dto.ID,
			IsActive:   dto.Active,
		}
		if err := r.db.UpsertGame(ctx, game); err != nil {
			result.Errors++
			logging.Warn().Err(err).Str("slug", dto.Slug).Msg("Failed to upsert game")
			continue
		}
		result.CardsProcessed++
	}
	return result
}

// ReconcileSets upserts one page of a game's sets listing. The set sync
// state machine fields are preserved by the upsert; only catalog
// attributes are refreshed for known sets.
func (r *BatchReconciler) ReconcileSets(ctx context.Context, gameID int64, sets []justtcg.Set) *PageResult {
	result := &PageResult{}
	for i := range sets {
		dto := &sets[i]
		if err := dto.Validate(); err != nil {
			result.Errors++
			logging.Warn().Err(err).Msg("Quarantined malformed set record")
			continue
		}

		code := dto.Code
		if code == "" {
			// Some catalogs omit set codes; the upstream id is the only
			// stable fallback.
			code = dto.ID
		}
		set := &models.Set{
			GameID:     gameID,
			Name:       dto.Name,
			Code:       code,
			ExternalID: dto.ID,
			CardCount:  dto.CardsCount,
		}
		if err := r.db.UpsertSet(ctx, set); err != nil {
			result.Errors++
			logging.Warn().Err(err).Str("code", code).Msg("Failed to upsert set")
			continue
		}
		result.CardsProcessed++
	}
	return result
}

// ReconcileCardPage writes one page of a set's cards with their variants
// and publishes any detected price changes.
func (r *BatchReconciler) ReconcileCardPage(ctx context.Context, game string, set *models.Set, cards []justtcg.Card) *PageResult {
	result := &PageResult{}

	// Boundary validation and mapping. Cards that fail validation are
	// quarantined with their variants; variants are validated per record
	// so one bad variant does not discard its card.
	mapped := make([]*models.Card, 0, len(cards))
	variantsByCard := make(map[string][]*models.Variant, len(cards))
	for i := range cards {
		dto := &cards[i]
		if err := dto.Validate(); err != nil {
			result.Errors++
			logging.Warn().Err(err).Msg("Quarantined malformed card record")
			continue
		}

		mapped = append(mapped, &models.Card{
			SetID:      set.ID,
			Name:       dto.Name,
			Number:     dto.Number,
			Rarity:     dto.Rarity,
			ExternalID: dto.ID,
			ImageURL:   dto.ImageURL,
		})

		for j := range dto.Variants {
			vdto := &dto.Variants[j]
			if err := vdto.Validate(); err != nil {
				result.Errors++
				logging.Warn().Err(err).Str("card", dto.ID).Msg("Quarantined malformed variant record")
				continue
			}
			variantsByCard[dto.ID] = append(variantsByCard[dto.ID], mapVariant(0, vdto))
		}
	}

	// Card rows first, sub-batched. Upserts fill in the local IDs the
	// variant rows need.
	for _, chunk := range chunkCards(mapped, r.subBatchSize) {
		metrics.SyncBatchSize.Observe(float64(len(chunk)))
		failed, err := r.db.UpsertCardBatch(ctx, chunk)
		if err != nil {
			// Whole-batch failure: count every row and move on. The page
			// is already fetched; later pages may still succeed.
			result.Errors += len(chunk)
			logging.Error().Err(err).Str("set", set.Code).Msg("Card batch write failed")
			continue
		}
		result.Errors += failed
		result.CardsProcessed += len(chunk) - failed
	}

	// Attach variants to their resolved cards.
	variants := make([]*models.Variant, 0, len(cards))
	cardNames := make(map[int64]string, len(mapped))
	for _, card := range mapped {
		if card.ID == 0 {
			// The card row failed to write; its variants have nothing to
			// attach to and were already accounted for above.
			continue
		}
		cardNames[card.ID] = card.Name
		for _, v := range variantsByCard[card.ExternalID] {
			v.CardID = card.ID
			variants = append(variants, v)
		}
	}

	for _, chunk := range chunkVariants(variants, r.subBatchSize) {
		metrics.SyncBatchSize.Observe(float64(len(chunk)))
		batch, err := r.db.UpsertVariantBatch(ctx, set.ID, chunk)
		if err != nil {
			result.Errors += len(chunk)
			logging.Error().Err(err).Str("set", set.Code).Msg("Variant batch write failed")
			continue
		}
		result.VariantsUpserted += batch.Upserted
		result.Errors += batch.Failed
		result.PriceChanges += len(batch.PriceChanges)

		for _, change := range batch.PriceChanges {
			variant := findVariantByID(chunk, change.VariantID)
			event := events.NewPriceChanged()
			event.Game = game
			event.SetCode = set.Code
			event.CardID = variant.CardID
			event.CardName = cardNames[variant.CardID]
			event.VariantID = change.VariantID
			event.Condition = variant.Condition
			event.Printing = variant.Printing
			event.PriceCentsOld = change.PriceCentsOld
			event.PriceCentsNew = change.PriceCentsNew
			event.PercentageChange = change.PercentageChange
			r.publishPriceChanged(ctx, event)
		}
	}

	return result
}

// BuildPricingRequests converts variant identities into batch pricing
// lookups, most specific identifier first: upstream variant id, then
// card id with condition/printing filters, then free-text name search.
func BuildPricingRequests(idents []*database.VariantIdentity) []justtcg.PricingRequest {
	lookups := make([]justtcg.PricingRequest, 0, len(idents))
	for _, ident := range idents {
		switch {
		case ident.ExternalVariantID != "":
			lookups = append(lookups, justtcg.PricingRequest{VariantID: ident.ExternalVariantID})
		case ident.CardExternalID != "":
			lookups = append(lookups, justtcg.PricingRequest{
				CardID:    ident.CardExternalID,
				Condition: denormalizeKey(ident.Condition),
				Printing:  denormalizeKey(ident.Printing),
			})
		default:
			lookups = append(lookups, justtcg.PricingRequest{
				Name:      ident.CardName,
				Condition: denormalizeKey(ident.Condition),
				Printing:  denormalizeKey(ident.Printing),
			})
		}
	}
	return lookups
}

// ReconcilePricingPage applies a batch pricing response to the variants
// it was requested for. Returned variants that match none of the
// requested identities are skipped; the upstream can return fuzzy name
// matches we never asked about.
func (r *BatchReconciler) ReconcilePricingPage(ctx context.Context, game string, idents []*database.VariantIdentity, resp *justtcg.CardsResponse) *PageResult {
	result := &PageResult{}

	byExternalID := make(map[string]*database.VariantIdentity, len(idents))
	byCompoundKey := make(map[string]*database.VariantIdentity, len(idents))
	for _, ident := range idents {
		if ident.ExternalVariantID != "" {
			byExternalID[ident.ExternalVariantID] = ident
		}
		byCompoundKey[pricingCompoundKey(ident.CardExternalID, ident.Condition, ident.Printing)] = ident
	}

	// Group refreshed variants by set for the per-set write lock.
	updatesBySet := make(map[int64][]*models.Variant)
	identByVariant := make(map[string]*database.VariantIdentity)
	for i := range resp.Data {
		card := &resp.Data[i]
		for j := range card.Variants {
			vdto := &card.Variants[j]
			if err := vdto.Validate(); err != nil {
				result.Errors++
				logging.Warn().Err(err).Str("card", card.ID).Msg("Quarantined malformed pricing record")
				continue
			}

			ident := byExternalID[vdto.ID]
			if ident == nil {
				ident = byCompoundKey[pricingCompoundKey(card.ID, normalizeKey(vdto.Condition), normalizeKey(vdto.Printing))]
			}
			if ident == nil {
				logging.Debug().
					Str("variant", vdto.ID).
					Str("card", card.ID).
					Msg("Pricing response variant matches no requested identity, skipping")
				continue
			}

			variant := mapVariant(ident.CardID, vdto)
			// The stored key is authoritative; the response spelling is not.
			variant.Condition = ident.Condition
			variant.Printing = ident.Printing
			updatesBySet[ident.SetID] = append(updatesBySet[ident.SetID], variant)
			identByVariant[variantCompoundKey(variant)] = ident
		}
	}

	for setID, updates := range updatesBySet {
		for _, chunk := range chunkVariants(updates, r.subBatchSize) {
			metrics.SyncBatchSize.Observe(float64(len(chunk)))
			batch, err := r.db.UpsertVariantBatch(ctx, setID, chunk)
			if err != nil {
				result.Errors += len(chunk)
				logging.Error().Err(err).Int64("set_id", setID).Msg("Pricing batch write failed")
				continue
			}
			result.VariantsUpserted += batch.Upserted
			result.Errors += batch.Failed
			result.PriceChanges += len(batch.PriceChanges)

			for _, change := range batch.PriceChanges {
				variant := findVariantByID(chunk, change.VariantID)
				ident := identByVariant[variantCompoundKey(variant)]
				event := events.NewPriceChanged()
				event.Game = game
				event.CardID = variant.CardID
				event.VariantID = change.VariantID
				event.Condition = variant.Condition
				event.Printing = variant.Printing
				if ident != nil {
					event.CardName = ident.CardName
				}
				event.PriceCentsOld = change.PriceCentsOld
				event.PriceCentsNew = change.PriceCentsNew
				event.PercentageChange = change.PercentageChange
				r.publishPriceChanged(ctx, event)
			}
		}
	}

	return result
}

func (r *BatchReconciler) publishPriceChanged(ctx context.Context, event *events.PriceChanged) {
	metrics.RecordPriceChange(event.Game)
	metrics.PriceHistoryRows.Inc()
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishPriceChanged(ctx, event); err != nil {
		logging.Warn().Err(err).Str("event_id", event.EventID).Msg("Failed to publish price change event")
	}
}

// guardFunc runs before each page fetch. pages is the number of pages
// already fetched in this job. Returning an error stops the loop; the
// error decides the job's terminal status.
type guardFunc func(pages, offset int) error

// pageFunc fetches and reconciles one page starting at offset. It
// returns the number of items fetched and whether more pages remain.
type pageFunc func(ctx context.Context, offset int) (fetched int, more bool, err error)

// fetchAllPages drives offset pagination from startOffset until the
// upstream is exhausted or the guard stops the job. It returns the
// number of pages fetched.
func fetchAllPages(ctx context.Context, startOffset int, guard guardFunc, fetch pageFunc) (int, error) {
	offset := startOffset
	pages := 0
	for {
		if err := guard(pages, offset); err != nil {
			return pages, err
		}

		fetched, more, err := fetch(ctx, offset)
		if err != nil {
			return pages, err
		}
		pages++
		offset += fetched

		if fetched == 0 || !more {
			return pages, nil
		}
	}
}

// pageHasMore decides whether another page follows: the pagination
// envelope is authoritative when present, otherwise a full page implies
// more data.
func pageHasMore(p *justtcg.Pagination, fetched, limit int) bool {
	if fetched == 0 {
		return false
	}
	if p != nil {
		return p.HasMore
	}
	return fetched == limit
}

// centsFromDecimal converts decimal dollars to integer cents, rounding
// half up. Validation rejects negative prices before this point.
func centsFromDecimal(price float64) int64 {
	return int64(math.Floor(price*100 + 0.5))
}

// normalizeKey converts an upstream condition or printing label to the
// stored form: trimmed, lowercased, whitespace collapsed to underscores.
// "Near Mint" -> "near_mint".
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

// denormalizeKey converts a stored key back to the upstream's canonical
// spelling for pricing request filters. "near_mint" -> "Near Mint".
func denormalizeKey(s string) string {
	words := strings.Split(s, "_")
	for i, word := range words {
		runes := []rune(word)
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// mapVariant converts an upstream variant to the storage model. Prices
// become integer cents; the variant key is normalized.
func mapVariant(cardID int64, dto *justtcg.Variant) *models.Variant {
	v := &models.Variant{
		CardID:            cardID,
		Condition:         normalizeKey(dto.Condition),
		Printing:          normalizeKey(dto.Printing),
		PriceCents:        centsFromDecimal(dto.Price),
		ExternalVariantID: dto.ID,
	}
	if dto.MarketPrice != nil {
		cents := centsFromDecimal(*dto.MarketPrice)
		v.MarketPriceCents = &cents
	}
	if dto.LowPrice != nil {
		cents := centsFromDecimal(*dto.LowPrice)
		v.LowPriceCents = &cents
	}
	if dto.HighPrice != nil {
		cents := centsFromDecimal(*dto.HighPrice)
		v.HighPriceCents = &cents
	}
	if dto.LastUpdated > 0 {
		v.LastUpdated = time.Unix(dto.LastUpdated, 0).UTC()
	}
	return v
}

func chunkCards(cards []*models.Card, size int) [][]*models.Card {
	var chunks [][]*models.Card
	for start := 0; start < len(cards); start += size {
		end := start + size
		if end > len(cards) {
			end = len(cards)
		}
		chunks = append(chunks, cards[start:end])
	}
	return chunks
}

func chunkVariants(variants []*models.Variant, size int) [][]*models.Variant {
	var chunks [][]*models.Variant
	for start := 0; start < len(variants); start += size {
		end := start + size
		if end > len(variants) {
			end = len(variants)
		}
		chunks = append(chunks, variants[start:end])
	}
	return chunks
}

func findVariantByID(variants []*models.Variant, id int64) *models.Variant {
	for _, v := range variants {
		if v.ID == id {
			return v
		}
	}
	// Unreachable for changes produced by the same batch; guard anyway.
	return &models.Variant{}
}

func pricingCompoundKey(cardExternalID, condition, printing string) string {
	return cardExternalID + "\x00" + condition + "\x00" + printing
}

func variantCompoundKey(v *models.Variant) string {
	return fmt.Sprintf("%d\x00%s\x00%s", v.CardID, v.Condition, v.Printing)
}
