package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"bankcards/internal/store"

	"github.com/shopspring/decimal"
)

var errInvalidAmount = errors.New("invalid amount")
var errInvalidDate = errors.New("invalid date")
var errInvalidStatus = errors.New("invalid status")

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errInvalidAmount
	}
	return amount, nil
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return date, nil
}

// parseCardFilter converts raw query parameters into the typed filter the
// stores accept. An unknown status is rejected here; raw strings never
// travel further down.
func parseCardFilter(query url.Values) (store.CardFilter, error) {
	filter := store.CardFilter{Search: query.Get("search")}
	raw := query.Get("status")
	if raw == "" {
		return filter, nil
	}
	switch status := store.CardStatus(raw); status {
	case store.CardStatusActive, store.CardStatusBlocked, store.CardStatusExpired:
		filter.Status = &status
		return filter, nil
	default:
		return store.CardFilter{}, errInvalidStatus
	}
}

func parsePaging(query url.Values) (limit, offset int) {
	limit = parseInt(query.Get("limit"), 20)
	page := parseInt(query.Get("page"), 1)
	return limit, (page - 1) * limit
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
