package domain

import (
	"fmt"
	"time"
)

// HourPolicy как сопоставлять PreferredHour с текущим моментом.
type HourPolicy string

const (
	// HourPolicyLocal час сравнивается в часовом поясе пользователя.
	HourPolicyLocal HourPolicy = "local"
	// HourPolicyUTC час сравнивается с часом UTC независимо от пояса.
	HourPolicyUTC HourPolicy = "utc"
)

// ParseHourPolicy пустая строка означает local.
func ParseHourPolicy(s string) (HourPolicy, error) {
	switch p := HourPolicy(lower(s)); p {
	case "":
		return HourPolicyLocal, nil
	case HourPolicyLocal, HourPolicyUTC:
		return p, nil
	default:
		return "", fmt.Errorf("unknown hour policy %q", s)
	}
}

// Location локация, в которой для пользователя считаются час и "сегодня".
// ok=false, если пояс пользователя не распознан и взят UTC.
func (p HourPolicy) Location(u User) (loc *time.Location, ok bool) {
	if p == HourPolicyUTC {
		return time.UTC, true
	}
	return u.Location()
}

// Today календарная дата пользователя в момент now.
func (p HourPolicy) Today(u User, now time.Time) time.Time {
	loc, _ := p.Location(u)
	return TodayIn(now, loc)
}

// Due true, если в момент now наступил предпочтительный час пользователя.
func (p HourPolicy) Due(u User, now time.Time) bool {
	loc, _ := p.Location(u)
	return now.In(loc).Hour() == u.PreferredHour
}
