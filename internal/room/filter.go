package room

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/roomfinder/internal/model"
)

// maxListLimit は一覧取得で指定できる件数の上限。
const maxListLimit = 100

// ParseFilter はクエリパラメータから一覧の検索条件を組み立てる。
// 数値として解釈できない値や、min_priceがmax_priceを超える場合はINVALID_FILTERを返す。
func ParseFilter(q url.Values) (model.RoomFilter, error) {
	filter := model.RoomFilter{
		Location:   strings.TrimSpace(q.Get("location")),
		Type:       strings.TrimSpace(q.Get("type")),
		Preference: strings.TrimSpace(q.Get("preference")),
	}

	var err error
	if filter.MinPrice, err = parsePrice(q, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parsePrice(q, "max_price"); err != nil {
		return filter, err
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return filter, model.NewInvalidFilterError("min_price")
	}

	if owner := q.Get("owner_id"); owner != "" {
		if _, err := uuid.Parse(owner); err != nil {
			return filter, model.NewInvalidFilterError("owner_id")
		}
		filter.OwnerID = owner
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			return filter, model.NewInvalidFilterError("limit")
		}
		filter.Limit = n
	}

	return filter, nil
}

func parsePrice(q url.Values, key string) (*int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, model.NewInvalidFilterError(key)
	}
	return &n, nil
}
