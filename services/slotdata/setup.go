package slotdata

import (
	"context"
	"log/slog"

	"pachidata-backend/services/slotdata/db"
)

type seedStore struct {
	ID         int64
	Name       string
	Prefecture string
}

// seedStores is the bootstrap store list for a fresh database. IDs are
// the site's own store identifiers taken from its hall pages.
var seedStores = []seedStore{
	{2564229, "マルハン新宿東宝ビル店", "東京都"},
	{2583253, "エスパス日拓大阪本店", "大阪府"},
	{2582885, "キコーナ京都駅前店", "京都府"},
	{2582867, "コンコルド名駅店", "愛知県"},
	{2583824, "ワンダーランド博多店", "福岡県"},
	{2583250, "ひまわり札幌中央店", "北海道"},
}

// SetupStores inserts the seed stores. Existing rows keep their
// failure counters and active flags, the insert is ignore-on-conflict.
func (s *Service) SetupStores(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "SetupStores")
	defer span.End()

	for _, seed := range seedStores {
		err := s.qry.CreateStore(ctx, db.CreateStoreParams{
			StoreID:    seed.ID,
			Name:       seed.Name,
			Prefecture: seed.Prefecture,
		})
		if err != nil {
			span.RecordError(err)
			return err
		}
	}
	slog.InfoContext(ctx, "seeded stores", "count", len(seedStores))
	return nil
}
