package slotdata

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"

	"pachidata-backend/lib/scrapers/minrepo"
	"pachidata-backend/lib/timezone"
	"pachidata-backend/services/slotdata/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PayoutFunc derives a payout rate from the raw credit/game fields when
// the site does not supply one. Returning false leaves the column null.
type PayoutFunc func(creditDiff, gameCount int64) (float64, bool)

// DerivePayout is the default formula: medals out over medals in at
// three medals per game, as a percentage. Values outside a sane band
// are discarded rather than stored, the raw fields stay available for
// re-derivation.
func DerivePayout(creditDiff, gameCount int64) (float64, bool) {
	if gameCount <= 0 {
		return 0, false
	}
	in := float64(gameCount * 3)
	rate := (in + float64(creditDiff)) / in * 100
	if rate < 0 || rate > 300 {
		return 0, false
	}
	return rate, true
}

// recordUID is the idempotency key: a content-derived digest of the
// store, date and the row's site-native token. It must stay
// deterministic, re-ingesting the same logical record on a retry has
// to collide with the first ingestion.
func recordUID(storeID int64, date, token string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d_%s_%s", storeID, date, token)))
	return hex.EncodeToString(sum[:])
}

// ingest writes parsed candidates as daily records. Duplicates (by
// uid) are skipped via the storage-layer conflict clause, so invoking
// this twice with the same page content is a no-op the second time and
// concurrent workers cannot double-insert. The whole batch goes in one
// transaction: a store either has its full page for the date or no
// rows at all, which is what lets retry and recovery sweeps treat
// record existence as proof of a completed ingest.
func (s *Service) ingest(ctx context.Context, records []minrepo.Record, storeID int64, date, pageUrl string) (written, duplicates int64, err error) {
	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return 0, 0, err
	}
	defer tx.Rollback()
	qtx := s.qry.WithTx(tx)

	now := timezone.Now().Unix()
	for _, rec := range records {
		payout := sql.NullFloat64{}
		if rec.PayoutRate != nil {
			payout = sql.NullFloat64{Float64: *rec.PayoutRate, Valid: true}
		} else if rec.CreditDiff != nil && rec.GameCount != nil {
			if rate, ok := s.opts.Payout(*rec.CreditDiff, *rec.GameCount); ok {
				payout = sql.NullFloat64{Float64: rate, Valid: true}
			}
		}

		affected, err := qtx.InsertDailyRecord(ctx, db.InsertDailyRecordParams{
			Uid:           recordUID(storeID, date, rec.Token),
			Date:          date,
			StoreID:       storeID,
			MachineNumber: nullInt(rec.MachineNumber != 0, rec.MachineNumber),
			MachineName:   rec.MachineName,
			CreditDiff:    nullIntPtr(rec.CreditDiff),
			GameCount:     nullIntPtr(rec.GameCount),
			PayoutRate:    payout,
			Bb:            nullIntPtr(rec.BB),
			Rb:            nullIntPtr(rec.RB),
			DataUrl:       pageUrl,
			RawFragment:   rec.Raw,
			CreatedAt:     now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert record")
			return 0, 0, err
		}
		if affected == 0 {
			duplicates++
		} else {
			written++
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit records")
		return 0, 0, err
	}

	span.SetAttributes(
		attribute.Int64("written", written),
		attribute.Int64("duplicates", duplicates),
	)
	return written, duplicates, nil
}

func nullInt(valid bool, v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: valid}
}

func nullIntPtr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
