package aggregate

import (
	"fmt"
	"strings"
	"time"

	"motolucro/internal/core"
)

// ActivityWindow is how far back active days are counted.
const ActivityWindow = 30 * 24 * time.Hour

// UserStats summarises one user's history for the admin panel.
type UserStats struct {
	Count      int        `json:"transaction_count"`
	Gains      core.Money `json:"total_gains"`
	Expenses   core.Money `json:"total_expenses"`
	Net        core.Money `json:"net"`
	ActiveDays int        `json:"active_days"`
}

// StatsOf computes UserStats over list. Active days are the distinct
// calendar days, in now's location, with at least one transaction in the
// last ActivityWindow.
func StatsOf(list []core.Transaction, now time.Time) UserStats {
	t := TotalsOf(list)
	st := UserStats{Count: len(list), Gains: t.Gains, Expenses: t.Expenses, Net: t.Net}

	since := now.Add(-ActivityWindow)
	days := make(map[dayKey]struct{})
	for _, tx := range list {
		if tx.Date.Before(since) || tx.Date.After(now) {
			continue
		}
		days[keyOf(tx.Date, now.Location())] = struct{}{}
	}
	st.ActiveDays = len(days)
	return st
}

const (
	AnyStatus       UserStatus = "all"
	ActiveStatus    UserStatus = "active"
	SuspendedStatus UserStatus = "suspended"
)

type UserStatus string

func ParseUserStatus(s string) (UserStatus, error) {
	switch st := UserStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return AnyStatus, nil
	case AnyStatus, ActiveStatus, SuspendedStatus:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status filter %q", s)
	}
}

// MatchUser applies the admin listing filters: a case-insensitive search
// over name and email, and the suspension status.
func MatchUser(u core.User, search string, status UserStatus) bool {
	switch status {
	case ActiveStatus:
		if u.IsSuspended {
			return false
		}
	case SuspendedStatus:
		if !u.IsSuspended {
			return false
		}
	}
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Name), search) ||
		strings.Contains(strings.ToLower(u.Email), search)
}

// Overview is the header of the admin panel.
type Overview struct {
	TotalUsers     int        `json:"total_users"`
	ActiveUsers    int        `json:"active_users"`
	SuspendedUsers int        `json:"suspended_users"`
	TotalRevenue   core.Money `json:"total_revenue"`
}

// OverviewOf counts users by status and sums every user's gains. stats is
// keyed by user id; users without an entry contribute no revenue.
func OverviewOf(users []core.User, stats map[string]UserStats) Overview {
	var ov Overview
	ov.TotalUsers = len(users)
	for _, u := range users {
		if u.IsSuspended {
			ov.SuspendedUsers++
		} else {
			ov.ActiveUsers++
		}
		ov.TotalRevenue.Cents += stats[u.ID].Gains.Cents
	}
	return ov
}
